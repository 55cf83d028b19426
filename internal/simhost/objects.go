package simhost

import (
	"fmt"

	"github.com/roach88/hostbench/internal/hostapi"
)

type playState int

const (
	stateStopped playState = iota
	statePlaying
	statePaused
)

type project struct {
	host   *Host
	name   string
	tracks []*track
	state  playState
}

func (p *project) Name() string    { return p.name }
func (p *project) IsCurrent() bool { return p.host.current == p }
func (p *project) MakeCurrent()    { p.host.current = p }
func (p *project) Close() error    { return p.host.closeProject(p) }

func (p *project) Tracks() []hostapi.Track {
	out := make([]hostapi.Track, len(p.tracks))
	for i, t := range p.tracks {
		out[i] = t
	}
	return out
}

func (p *project) AddTrack(name string) hostapi.Track {
	t := &track{project: p, name: name}
	p.tracks = append(p.tracks, t)
	return t
}

// TrackByName returns the first track with the given name.
func (p *project) TrackByName(name string) (hostapi.Track, bool) {
	for _, t := range p.tracks {
		if t.name == name {
			return t, true
		}
	}
	return nil, false
}

func (p *project) Play() { p.state = statePlaying }

// Pause toggles between playing and paused. A stopped project stays stopped.
func (p *project) Pause() {
	switch p.state {
	case statePlaying:
		p.state = statePaused
	case statePaused:
		p.state = statePlaying
	}
}

func (p *project) Stop()           { p.state = stateStopped }
func (p *project) IsPlaying() bool { return p.state == statePlaying }
func (p *project) IsPaused() bool  { return p.state == statePaused }
func (p *project) IsStopped() bool { return p.state == stateStopped }

type track struct {
	project *project
	name    string
	items   []*item
}

func (t *track) Name() string        { return t.name }
func (t *track) SetName(name string) { t.name = name }

func (t *track) Items() []hostapi.Item {
	out := make([]hostapi.Item, len(t.items))
	for i, it := range t.items {
		out[i] = it
	}
	return out
}

func (t *track) AddItem(position, length float64) hostapi.Item {
	it := &item{position: position, length: length, active: -1}
	t.items = append(t.items, it)
	return it
}

func (t *track) Remove() error {
	p := t.project
	for i, x := range p.tracks {
		if x == t {
			p.tracks = append(p.tracks[:i], p.tracks[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("remove track %q: %w", t.name, hostapi.ErrNotFound)
}

type item struct {
	position float64
	length   float64
	takes    []*take
	active   int
}

func (it *item) Position() float64       { return it.position }
func (it *item) Length() float64         { return it.length }
func (it *item) SetPosition(pos float64) { it.position = pos }

func (it *item) Takes() []hostapi.Take {
	out := make([]hostapi.Take, len(it.takes))
	for i, tk := range it.takes {
		out[i] = tk
	}
	return out
}

// AddTake appends a take. The first take of an item becomes active.
func (it *item) AddTake(name string) hostapi.Take {
	tk := &take{item: it, index: len(it.takes), name: name}
	it.takes = append(it.takes, tk)
	if it.active < 0 {
		it.active = tk.index
	}
	return tk
}

func (it *item) ActiveTake() (hostapi.Take, bool) {
	if it.active < 0 {
		return nil, false
	}
	return it.takes[it.active], true
}

type take struct {
	item  *item
	index int
	name  string
}

func (tk *take) Name() string        { return tk.name }
func (tk *take) SetName(name string) { tk.name = name }
func (tk *take) MakeActive()         { tk.item.active = tk.index }
func (tk *take) IsActive() bool      { return tk.item.active == tk.index }
