package song

// Demo builds the small two-track module shipped with the cmds. Track 0 is
// a four-channel loop, track 1 a short arpeggio line used by the chained
// render export.
func Demo() *Memory {
	lead := Pattern{
		note(NoteC, 3), {Volume: VolumeNone}, note(NoteE, 3), {Volume: VolumeNone},
		note(NoteG, 3), {Volume: VolumeNone}, note(NoteE, 3), {Volume: VolumeNone},
		note(NoteC, 3), {Volume: VolumeNone}, note(NoteF, 3), {Volume: VolumeNone},
		note(NoteA, 3), {Volume: VolumeNone}, halt(), {Volume: VolumeNone},
	}
	bass := Pattern{
		note(NoteC, 2), {Volume: VolumeNone}, {Volume: VolumeNone}, {Volume: VolumeNone},
		note(NoteG, 1), {Volume: VolumeNone}, {Volume: VolumeNone}, {Volume: VolumeNone},
		note(NoteF, 2), {Volume: VolumeNone}, {Volume: VolumeNone}, {Volume: VolumeNone},
		note(NoteC, 2), {Volume: VolumeNone}, {Volume: VolumeNone}, {Volume: VolumeNone},
	}
	tri := Pattern{
		note(NoteC, 4), {Volume: VolumeNone}, note(NoteG, 3), {Volume: VolumeNone},
		note(NoteE, 4), {Volume: VolumeNone}, note(NoteC, 4), {Volume: VolumeNone},
		note(NoteF, 4), {Volume: VolumeNone}, note(NoteC, 4), {Volume: VolumeNone},
		note(NoteA, 3), {Volume: VolumeNone}, halt(), {Volume: VolumeNone},
	}
	drums := Pattern{
		noisy(12), {Volume: VolumeNone}, noisy(4), {Volume: VolumeNone},
		noisy(12), {Volume: VolumeNone}, noisy(4), {Volume: VolumeNone},
		noisy(12), {Volume: VolumeNone}, noisy(4), {Volume: VolumeNone},
		noisy(12), noisy(4), noisy(4), noisy(4),
	}

	arp := Pattern{
		note(NoteA, 2), note(NoteC, 3), note(NoteE, 3), note(NoteA, 3),
		note(NoteE, 3), note(NoteC, 3), note(NoteA, 2), note(NoteE, 2),
		note(NoteA, 2), note(NoteC, 3), note(NoteE, 3), note(NoteA, 3),
		note(NoteE, 3), note(NoteC, 3), halt(), {Volume: VolumeNone},
	}
	silent := make(Pattern, 16)
	for i := range silent {
		silent[i] = NoteEvent{Volume: VolumeNone}
	}

	return &Memory{
		TitleText: "famix demo",
		Channels:  5,
		Highlight: 4,
		Loaded:    true,
		Tracks: []*Track{
			{
				Name:  "loop",
				Tempo: 150,
				Speed: 6,
				Rows:  16,
				Frames: [][]Pattern{
					{lead, bass, tri, drums, silent},
					{lead, bass, tri, drums, silent},
				},
			},
			{
				Name:  "arp",
				Tempo: 120,
				Speed: 4,
				Rows:  16,
				Frames: [][]Pattern{
					{arp, silent, silent, silent, silent},
				},
			},
		},
	}
}

func note(n, oct int) NoteEvent {
	return NoteEvent{Note: n, Octave: oct, Volume: VolumeNone}
}

func halt() NoteEvent {
	return NoteEvent{Note: NoteHalt, Volume: VolumeNone}
}

func noisy(vol int) NoteEvent {
	return NoteEvent{Note: NoteC, Octave: 4, Volume: vol}
}
