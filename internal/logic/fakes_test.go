package logic

import "errors"

type recordingSwitch struct {
	level bool
	sets  []bool
}

func (s *recordingSwitch) Set(on bool) error {
	s.level = on
	s.sets = append(s.sets, on)
	return nil
}

// fallingEdges counts high->low transitions.
func (s *recordingSwitch) fallingEdges() int {
	n := 0
	prev := false
	for _, v := range s.sets {
		if prev && !v {
			n++
		}
		prev = v
	}
	return n
}

type recordingPixel struct {
	color  RGB
	colors []RGB
}

func (p *recordingPixel) SetColor(c RGB) error {
	p.color = c
	p.colors = append(p.colors, c)
	return nil
}

type scriptedLine struct {
	levels []bool
	index  int
	err    error
}

func (l *scriptedLine) Read() (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	v := l.levels[l.index]
	if l.index < len(l.levels)-1 {
		l.index++
	}
	return v, nil
}

type scriptedProbe struct {
	readings []float64
	index    int
	err      error
}

func (p *scriptedProbe) ReadCelsius() (float64, error) {
	if p.err != nil {
		return 0, p.err
	}
	v := p.readings[p.index]
	if p.index < len(p.readings)-1 {
		p.index++
	}
	return v, nil
}

type published struct {
	topic    string
	payload  string
	retained bool
}

type recordingPublisher struct {
	msgs []published
}

func (r *recordingPublisher) Publish(topic string, payload []byte, retained bool) error {
	r.msgs = append(r.msgs, published{topic: topic, payload: string(payload), retained: retained})
	return nil
}

var errSensor = errors.New("sensor fault")
