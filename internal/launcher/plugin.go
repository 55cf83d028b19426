package launcher

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/roach88/hostbench/internal/config"
	"github.com/roach88/hostbench/internal/simhost"
)

// PluginFile is the descriptor name written into the host plugin directory.
const PluginFile = "hostbench.yaml"

// RunHomeDir is the host home of a run, inside the run's sink directory.
const RunHomeDir = "home"

// prepareRunHome creates the host home of the run stored in runDir. The
// plugin descriptor and ext state live there, so concurrent runs of one
// cached release never see each other's files.
func prepareRunHome(runDir string) (string, error) {
	home := filepath.Join(runDir, RunHomeDir)
	if err := os.MkdirAll(home, 0o755); err != nil {
		return "", fmt.Errorf("create host home: %w", err)
	}
	return home, nil
}

// InstallPlugin writes the harness plugin descriptor into
// <home>/UserPlugins. It is a no-op when no suite is configured.
func InstallPlugin(home string, pc config.PluginConfig) error {
	if pc.Suite == "" {
		return nil
	}
	if home == "" {
		return errors.New("plugin configured but the host has no home directory")
	}

	data, err := simhost.MarshalPluginDescriptor(simhost.PluginDescriptor{
		Suite:  pc.Suite,
		Action: pc.Action,
	})
	if err != nil {
		return fmt.Errorf("encode plugin descriptor: %w", err)
	}

	dir := filepath.Join(home, simhost.PluginDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create plugin dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".install-")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, PluginFile)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("install plugin: %w", err)
	}
	return nil
}
