package suites

import (
	"errors"
	"fmt"

	"github.com/roach88/hostbench/internal/step"
)

func expect(cond bool, format string, args ...any) error {
	if cond {
		return nil
	}
	return fmt.Errorf(format, args...)
}

func capabilities() []step.TestStep {
	return []step.TestStep{
		step.New("project tabs", projectTabs),
		step.New("tracks", tracks),
		step.New("items and takes", itemsAndTakes),
		step.New("transport", transport),
		step.New("ext state", extState),
		step.Restricted(step.MinVersion("7.0"), "ext state persist", extStatePersist),
		step.Restricted(step.MinVersion("99.0"), "future api", func(*step.Context) error {
			return errors.New("must be filtered on older hosts")
		}),
	}
}

func projectTabs(c *step.Context) error {
	first := c.Host.CurrentProject()
	before := len(c.Host.Projects())

	p := c.Host.AddProjectTab(true)
	if err := expect(len(c.Host.Projects()) == before+1, "project count %d, want %d", len(c.Host.Projects()), before+1); err != nil {
		return err
	}
	if err := expect(p.IsCurrent(), "new tab %q is not current", p.Name()); err != nil {
		return err
	}

	first.MakeCurrent()
	if err := expect(!p.IsCurrent(), "tab %q still current after switching back", p.Name()); err != nil {
		return err
	}
	if err := p.Close(); err != nil {
		return fmt.Errorf("close tab: %w", err)
	}
	return expect(len(c.Host.Projects()) == before, "project count %d after close, want %d", len(c.Host.Projects()), before)
}

func tracks(c *step.Context) error {
	pr := c.Host.CurrentProject()
	t := pr.AddTrack("drums")
	if _, ok := pr.TrackByName("drums"); !ok {
		return errors.New("track drums not found after add")
	}

	t.SetName("percussion")
	if _, ok := pr.TrackByName("drums"); ok {
		return errors.New("old track name still resolves")
	}
	if err := expect(t.Name() == "percussion", "track name %q", t.Name()); err != nil {
		return err
	}

	n := len(pr.Tracks())
	if err := t.Remove(); err != nil {
		return fmt.Errorf("remove track: %w", err)
	}
	return expect(len(pr.Tracks()) == n-1, "track count %d after remove, want %d", len(pr.Tracks()), n-1)
}

func itemsAndTakes(c *step.Context) error {
	t := c.Host.CurrentProject().AddTrack("items")
	defer t.Remove()

	it := t.AddItem(1.5, 2)
	it.SetPosition(3)
	if err := expect(it.Position() == 3 && it.Length() == 2, "item at %v len %v", it.Position(), it.Length()); err != nil {
		return err
	}

	if _, ok := it.ActiveTake(); ok {
		return errors.New("empty item reports an active take")
	}
	first := it.AddTake("first")
	second := it.AddTake("second")
	if err := expect(first.IsActive() && !second.IsActive(), "first added take should be active"); err != nil {
		return err
	}

	second.MakeActive()
	active, ok := it.ActiveTake()
	if !ok || active.Name() != "second" {
		return errors.New("second take not active after MakeActive")
	}
	return expect(len(it.Takes()) == 2 && len(t.Items()) == 1, "takes=%d items=%d", len(it.Takes()), len(t.Items()))
}

func transport(c *step.Context) error {
	pr := c.Host.CurrentProject()
	pr.Play()
	if err := expect(pr.IsPlaying(), "not playing after Play"); err != nil {
		return err
	}
	pr.Pause()
	if err := expect(pr.IsPaused(), "not paused after Pause"); err != nil {
		return err
	}
	pr.Stop()
	return expect(pr.IsStopped(), "not stopped after Stop")
}

func extState(c *step.Context) error {
	es := c.Host.ExtState()
	if err := es.Set(benchSection, "volatile", "1", false); err != nil {
		return err
	}
	if v, ok := es.Get(benchSection, "volatile"); !ok || v != "1" {
		return fmt.Errorf("get volatile = %q, %v", v, ok)
	}
	if err := es.Delete(benchSection, "volatile", false); err != nil {
		return err
	}
	_, ok := es.Get(benchSection, "volatile")
	return expect(!ok, "volatile key survived delete")
}

func extStatePersist(c *step.Context) error {
	es := c.Host.ExtState()
	if err := es.Set(benchSection, "last_run", c.RunID, true); err != nil {
		return err
	}
	v, ok := es.Get(benchSection, "last_run")
	return expect(ok && v == c.RunID, "last_run = %q, want %q", v, c.RunID)
}
