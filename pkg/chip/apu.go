package chip

// Software 2A03: two pulses, triangle, noise and DMC, stepped cycle by
// cycle with a fractional sample accumulator. Register writes only happen
// from the engine goroutine.

var dutyTable = [4][8]byte{
	{0, 1, 0, 0, 0, 0, 0, 0},
	{0, 1, 1, 0, 0, 0, 0, 0},
	{0, 1, 1, 1, 1, 0, 0, 0},
	{1, 0, 0, 1, 1, 1, 1, 1},
}

var lengthTable = [32]byte{
	10, 254, 20, 2, 40, 4, 80, 6, 160, 8, 60, 10, 14, 12, 26, 14,
	12, 16, 24, 18, 48, 20, 96, 22, 192, 24, 72, 26, 16, 28, 32, 30,
}

var noisePeriodNTSC = [16]int{
	4, 8, 16, 32, 64, 96, 128, 160, 202, 254, 380, 508, 762, 1016, 2034, 4068,
}

var dmcPeriodNTSC = [16]int{
	428, 380, 340, 320, 286, 254, 226, 214, 190, 160, 142, 128, 106, 84, 72, 54,
}

type pulse struct {
	enabled  bool
	duty     byte
	phase    int
	period   int
	timer    int
	length   int
	lenHalt  bool
	constVol bool
	volume   byte
	envVol   byte
	envTimer byte
	envStart bool

	sweepEn     bool
	sweepPeriod byte
	sweepNeg    bool
	sweepShift  byte
	sweepTimer  byte
	sweepReload bool
	sweepOnes   bool // pulse 1 uses one's complement negation
}

type triangle struct {
	enabled   bool
	period    int
	timer     int
	phase     int
	length    int
	lenHalt   bool
	linear    int
	linReload int
	linFlag   bool
}

type noise struct {
	enabled  bool
	mode     bool
	period   int
	timer    int
	shift    uint16
	length   int
	lenHalt  bool
	constVol bool
	volume   byte
	envVol   byte
	envTimer byte
	envStart bool
}

type dmc struct {
	enabled   bool
	loop      bool
	rate      int
	timer     int
	level     byte
	sample    *DPCMSample
	startOff  int
	length    int
	pos       int
	remaining int
	shift     byte
	bits      int
	silent    bool
}

// APU implements Chip for the internal 2A03.
type APU struct {
	machine    Machine
	sampleRate int
	levels     MixerLevels
	external   Mask

	p1  pulse
	p2  pulse
	tri triangle
	nse noise
	dpc dmc

	// frame sequencer, quarter frames
	seqCycles int
	seqStep   int

	cyclesPerSample float64
	sampleAcc       float64
	out             []int16

	regs    [0x20]byte
	written [0x20]bool
}

func NewAPU(sampleRate int) *APU {
	a := &APU{
		machine:    NTSC,
		sampleRate: sampleRate,
		levels:     DefaultMixerLevels(),
	}
	a.recalcRates()
	a.Reset()
	return a
}

func (a *APU) recalcRates() {
	base := float64(a.machine.BaseFreq())
	if a.sampleRate > 0 {
		a.cyclesPerSample = base / float64(a.sampleRate)
	}
}

func (a *APU) Reset() {
	sample := a.dpc.sample // survives reset, cleared explicitly
	a.p1 = pulse{sweepOnes: true}
	a.p2 = pulse{}
	a.tri = triangle{}
	a.nse = noise{shift: 1}
	a.dpc = dmc{rate: dmcPeriodNTSC[0], sample: sample, silent: true}
	a.seqCycles = 0
	a.seqStep = 0
	a.sampleAcc = 0
	for i := range a.regs {
		a.regs[i] = 0
		a.written[i] = false
	}
}

func (a *APU) SetSampleRate(rate int) {
	a.sampleRate = rate
	a.recalcRates()
}

func (a *APU) SetMachineRate(m Machine, frameRate int) {
	a.machine = m
	_ = frameRate // pacing is the engine's concern; only the base clock matters here
	a.recalcRates()
}

func (a *APU) SetMixerLevels(levels MixerLevels) { a.levels = levels }
func (a *APU) SetExternalSound(mask Mask)        { a.external = mask }

func (a *APU) WriteSample(s *DPCMSample) { a.dpc.sample = s }

func (a *APU) ClearSample() {
	a.dpc.sample = nil
	a.dpc.remaining = 0
	a.dpc.bits = 0
	a.dpc.silent = true
}

func (a *APU) DPCMPlaying() bool { return a.dpc.remaining > 0 || (!a.dpc.silent && a.dpc.bits > 0) }

func (a *APU) GetDPCMState() DPCMState {
	return DPCMState{SamplePos: a.dpc.pos, DeltaCounter: int(a.dpc.level)}
}

func (a *APU) RegisterSnapshot(addr uint16) (byte, bool) {
	if addr < 0x4000 || addr >= 0x4020 {
		return 0, false
	}
	i := addr - 0x4000
	return a.regs[i], a.written[i]
}

func (a *APU) ChannelFreq(channel int) float64 {
	base := float64(a.machine.BaseFreq())
	switch channel {
	case 0:
		return base / (16 * float64(a.p1.period+1))
	case 1:
		return base / (16 * float64(a.p2.period+1))
	case 2:
		return base / (32 * float64(a.tri.period+1))
	case 3:
		return base / float64(a.nse.period)
	case 4:
		return base / float64(a.dpc.rate)
	}
	return 0
}

func (a *APU) Read(addr uint16) byte {
	if addr != 0x4015 {
		return 0
	}
	var st byte
	if a.p1.length > 0 {
		st |= 0x01
	}
	if a.p2.length > 0 {
		st |= 0x02
	}
	if a.tri.length > 0 {
		st |= 0x04
	}
	if a.nse.length > 0 {
		st |= 0x08
	}
	if a.dpc.remaining > 0 {
		st |= 0x10
	}
	return st
}

func (a *APU) Write(addr uint16, value byte) {
	if addr >= 0x4000 && addr < 0x4020 {
		a.regs[addr-0x4000] = value
		a.written[addr-0x4000] = true
	}
	switch {
	case addr <= 0x4003:
		a.p1.write(addr&3, value)
	case addr <= 0x4007:
		a.p2.write(addr&3, value)
	case addr <= 0x400B:
		a.tri.write(addr&3, value)
	case addr <= 0x400F:
		a.nse.write(addr&3, value)
	case addr <= 0x4013:
		a.dpc.write(addr&3, value)
	case addr == 0x4015:
		a.writeStatus(value)
	case addr == 0x4017:
		a.seqStep = 0
		a.seqCycles = 0
	}
}

func (a *APU) writeStatus(value byte) {
	a.p1.enabled = value&0x01 != 0
	a.p2.enabled = value&0x02 != 0
	a.tri.enabled = value&0x04 != 0
	a.nse.enabled = value&0x08 != 0
	if !a.p1.enabled {
		a.p1.length = 0
	}
	if !a.p2.enabled {
		a.p2.length = 0
	}
	if !a.tri.enabled {
		a.tri.length = 0
	}
	if !a.nse.enabled {
		a.nse.length = 0
	}
	if value&0x10 != 0 {
		a.dpc.enabled = true
		if a.dpc.remaining == 0 {
			a.dpc.restart()
		}
	} else {
		a.dpc.enabled = false
		a.dpc.remaining = 0
	}
}

// Step advances the chip by the cycle budget for one engine tick.
func (a *APU) Step(cycles int) []int16 {
	a.out = a.out[:0]
	quarter := a.machine.BaseFreq() / 240

	for i := 0; i < cycles; i++ {
		a.seqCycles++
		if a.seqCycles >= quarter {
			a.seqCycles = 0
			a.stepSequencer()
		}

		// Pulses and noise clock every second CPU cycle on hardware;
		// folding that into the period keeps the loop simple.
		a.p1.step()
		a.p2.step()
		a.tri.step()
		a.nse.step()
		a.dpc.step()

		a.sampleAcc++
		if a.sampleAcc >= a.cyclesPerSample {
			a.sampleAcc -= a.cyclesPerSample
			a.out = append(a.out, a.mix())
		}
	}
	return a.out
}

func (a *APU) stepSequencer() {
	a.seqStep = (a.seqStep + 1) & 3
	a.p1.stepEnvelope()
	a.p2.stepEnvelope()
	a.nse.stepEnvelope()
	a.tri.stepLinear()
	if a.seqStep&1 == 0 { // half frames
		a.p1.stepLength()
		a.p2.stepLength()
		a.tri.stepLength()
		a.nse.stepLength()
		a.p1.stepSweep()
		a.p2.stepSweep()
	}
}

// Linear approximation of the 2A03 mixer.
func (a *APU) mix() int16 {
	p := 0.00752 * float64(int(a.p1.output())+int(a.p2.output())) * a.levels.APU1
	tnd := (0.00851*float64(a.tri.output()) + 0.00494*float64(a.nse.output())) * a.levels.APU1
	tnd += 0.00335 * float64(a.dpc.level) * a.levels.APU2
	v := (p + tnd) * 2
	if v > 1 {
		v = 1
	}
	return int16(v * 32767)
}

// ---- pulse ----

func (p *pulse) write(reg uint16, value byte) {
	switch reg {
	case 0:
		p.duty = value >> 6
		p.lenHalt = value&0x20 != 0
		p.constVol = value&0x10 != 0
		p.volume = value & 0x0F
	case 1:
		p.sweepEn = value&0x80 != 0
		p.sweepPeriod = (value >> 4) & 7
		p.sweepNeg = value&0x08 != 0
		p.sweepShift = value & 7
		p.sweepReload = true
	case 2:
		p.period = (p.period & 0x700) | int(value)
	case 3:
		p.period = (p.period & 0xFF) | (int(value&7) << 8)
		if p.enabled {
			p.length = int(lengthTable[value>>3])
		}
		p.phase = 0
		p.envStart = true
	}
}

func (p *pulse) step() {
	p.timer--
	if p.timer <= 0 {
		p.timer = 2 * (p.period + 1)
		p.phase = (p.phase + 1) & 7
	}
}

func (p *pulse) stepEnvelope() {
	if p.envStart {
		p.envStart = false
		p.envVol = 15
		p.envTimer = p.volume
		return
	}
	if p.envTimer > 0 {
		p.envTimer--
		return
	}
	p.envTimer = p.volume
	if p.envVol > 0 {
		p.envVol--
	} else if p.lenHalt {
		p.envVol = 15
	}
}

func (p *pulse) stepLength() {
	if !p.lenHalt && p.length > 0 {
		p.length--
	}
}

func (p *pulse) stepSweep() {
	if p.sweepReload {
		p.sweepTimer = p.sweepPeriod
		p.sweepReload = false
	} else if p.sweepTimer > 0 {
		p.sweepTimer--
	} else {
		p.sweepTimer = p.sweepPeriod
		if p.sweepEn && p.sweepShift > 0 {
			delta := p.period >> p.sweepShift
			if p.sweepNeg {
				p.period -= delta
				if p.sweepOnes {
					p.period--
				}
			} else if p.period+delta < 0x800 {
				p.period += delta
			}
			if p.period < 0 {
				p.period = 0
			}
		}
	}
}

func (p *pulse) output() byte {
	if !p.enabled || p.length == 0 || p.period < 8 {
		return 0
	}
	if dutyTable[p.duty][p.phase] == 0 {
		return 0
	}
	if p.constVol {
		return p.volume
	}
	return p.envVol
}

// ---- triangle ----

func (t *triangle) write(reg uint16, value byte) {
	switch reg {
	case 0:
		t.lenHalt = value&0x80 != 0
		t.linReload = int(value & 0x7F)
	case 2:
		t.period = (t.period & 0x700) | int(value)
	case 3:
		t.period = (t.period & 0xFF) | (int(value&7) << 8)
		if t.enabled {
			t.length = int(lengthTable[value>>3])
		}
		t.linFlag = true
	}
}

func (t *triangle) step() {
	t.timer--
	if t.timer <= 0 {
		t.timer = t.period + 1
		if t.length > 0 && t.linear > 0 {
			t.phase = (t.phase + 1) & 31
		}
	}
}

func (t *triangle) stepLinear() {
	if t.linFlag {
		t.linear = t.linReload
	} else if t.linear > 0 {
		t.linear--
	}
	if !t.lenHalt {
		t.linFlag = false
	}
}

func (t *triangle) stepLength() {
	if !t.lenHalt && t.length > 0 {
		t.length--
	}
}

func (t *triangle) output() byte {
	if !t.enabled || t.length == 0 || t.linear == 0 {
		return 0
	}
	if t.phase < 16 {
		return byte(15 - t.phase)
	}
	return byte(t.phase - 16)
}

// ---- noise ----

func (n *noise) write(reg uint16, value byte) {
	switch reg {
	case 0:
		n.lenHalt = value&0x20 != 0
		n.constVol = value&0x10 != 0
		n.volume = value & 0x0F
	case 2:
		n.mode = value&0x80 != 0
		n.period = noisePeriodNTSC[value&0x0F]
	case 3:
		if n.enabled {
			n.length = int(lengthTable[value>>3])
		}
		n.envStart = true
	}
}

func (n *noise) step() {
	n.timer--
	if n.timer <= 0 {
		if n.period == 0 {
			n.period = noisePeriodNTSC[0]
		}
		n.timer = n.period
		var fb uint16
		if n.mode {
			fb = (n.shift & 1) ^ ((n.shift >> 6) & 1)
		} else {
			fb = (n.shift & 1) ^ ((n.shift >> 1) & 1)
		}
		n.shift = (n.shift >> 1) | (fb << 14)
	}
}

func (n *noise) stepEnvelope() {
	if n.envStart {
		n.envStart = false
		n.envVol = 15
		n.envTimer = n.volume
		return
	}
	if n.envTimer > 0 {
		n.envTimer--
		return
	}
	n.envTimer = n.volume
	if n.envVol > 0 {
		n.envVol--
	} else if n.lenHalt {
		n.envVol = 15
	}
}

func (n *noise) stepLength() {
	if !n.lenHalt && n.length > 0 {
		n.length--
	}
}

func (n *noise) output() byte {
	if !n.enabled || n.length == 0 || n.shift&1 == 1 {
		return 0
	}
	if n.constVol {
		return n.volume
	}
	return n.envVol
}

// ---- dmc ----

func (d *dmc) write(reg uint16, value byte) {
	switch reg {
	case 0:
		d.loop = value&0x40 != 0
		d.rate = dmcPeriodNTSC[value&0x0F]
	case 1:
		d.level = value & 0x7F
	case 2:
		d.startOff = int(value) * 64
	case 3:
		d.length = int(value)*16 + 1
	}
}

func (d *dmc) restart() {
	d.pos = d.startOff
	d.remaining = d.length
	if d.sample == nil || d.remaining == 0 {
		d.remaining = 0
	}
}

func (d *dmc) step() {
	d.timer--
	if d.timer > 0 {
		return
	}
	if d.rate == 0 {
		d.rate = dmcPeriodNTSC[0]
	}
	d.timer = d.rate

	if d.bits == 0 {
		d.bits = 8
		if d.remaining > 0 && d.sample != nil && d.pos < len(d.sample.Data) {
			d.shift = d.sample.Data[d.pos]
			d.silent = false
			d.pos++
			d.remaining--
			if d.remaining == 0 && d.loop {
				d.restart()
			}
		} else {
			d.silent = true
			d.remaining = 0
		}
	}

	if !d.silent {
		if d.shift&1 != 0 {
			if d.level <= 125 {
				d.level += 2
			}
		} else if d.level >= 2 {
			d.level -= 2
		}
	}
	d.shift >>= 1
	d.bits--
}
