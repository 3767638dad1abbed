//go:build !windows

package calculation

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nvandessel/octorun/internal/engine"
	"github.com/nvandessel/octorun/internal/logging"
	"github.com/nvandessel/octorun/internal/params"
	"github.com/nvandessel/octorun/internal/report"
	"github.com/nvandessel/octorun/internal/workdir"
)

const infoBody = `SCF converged in 7 iterations
Energy [H]:
      Total       =        -0.5
      Kinetic     =         0.25
      External    =        -0.75
`

// fakeEngine writes a script that checks for the input file, then produces
// static/info and a 2x2x2 cube.
func fakeEngine(t *testing.T, info string) *engine.Runner {
	t.Helper()
	script := `#!/bin/sh
test -f inp || { echo "no input" ; exit 2; }
mkdir -p static
cat > static/info <<'EOF'
` + info + `EOF
printf 'h\nh\nh\nh\nh\nh\nh\n1 2 3 4\n5 6 7 8\n' > static/density.cube
printf '# x rho\n-1 0.1\n0 0.9\n1 0.1\n' > 'static/density.y=0,z=0'
echo "engine done"
`
	path := filepath.Join(t.TempDir(), "octopus.sh")
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatalf("failed to write fake engine: %v", err)
	}
	return engine.NewRunner(path, 0, nil)
}

func newCalc(t *testing.T, runner *engine.Runner, keep bool) (*Calculation, string) {
	t.Helper()
	folder := filepath.Join(t.TempDir(), "calc")
	c, err := New(Options{Folder: folder, Keep: keep, Runner: runner})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c, folder
}

func TestNew_WritesMarker(t *testing.T) {
	c, folder := newCalc(t, nil, true)
	if _, err := os.Stat(filepath.Join(folder, workdir.MarkerFile)); err != nil {
		t.Errorf("marker missing: %v", err)
	}
	if c.Folder() != folder {
		t.Errorf("Folder() = %s, want %s", c.Folder(), folder)
	}
}

func TestWriteInput_Overwrites(t *testing.T) {
	c, folder := newCalc(t, nil, true)
	c.Set("Foo", params.ScalarValue(params.Int(1)))
	if err := c.WriteInput(); err != nil {
		t.Fatal(err)
	}
	c.Set("Foo", params.ScalarValue(params.Int(2)))
	if err := c.WriteInput(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(folder, InputFile))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(string(data), "Foo = ") != 1 || !strings.Contains(string(data), "Foo = 2") {
		t.Errorf("input not fully rewritten:\n%s", data)
	}
	if string(data) != c.Input() {
		t.Errorf("file content differs from Input():\n%s\nvs\n%s", data, c.Input())
	}
}

func TestExecute_CubeDensity(t *testing.T) {
	c, folder := newCalc(t, fakeEngine(t, infoBody), false)
	c.AddBoxParameters(10, 0.5)
	c.AddSpecies("H", 1, "species_user_defined", 1, params.String("-1/sqrt(x^2+1)"))
	c.AddCoordinate("H", 0, 0, 0)

	res, err := c.Execute(context.Background(), true)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	defer res.Release()

	if res.Iterations != 7 || res.TotalEnergy != -0.5 || res.KineticEnergy != 0.25 || res.ExternalEnergy != -0.75 {
		t.Errorf("unexpected result: %+v", res)
	}
	if res.Density == nil {
		t.Fatal("Density = nil, want cube")
	}
	if got := res.Density.Shape(); len(got) != 3 || got[0] != 2 {
		t.Errorf("density shape = %v, want [2 2 2]", got)
	}
	if res.Density.At(1, 1, 1) != 8 {
		t.Errorf("density[1][1][1] = %v, want 8", res.Density.At(1, 1, 1))
	}
	if _, err := os.Stat(folder); !os.IsNotExist(err) {
		t.Errorf("folder not removed after Execute: %v", err)
	}
}

func TestExecute_AxisDensity(t *testing.T) {
	c, _ := newCalc(t, fakeEngine(t, infoBody), false)
	c.Set(params.KeyDimensions, params.ScalarValue(params.Int(1)))

	res, err := c.Execute(context.Background(), true)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	defer res.Release()

	if res.Density == nil || res.Density.NumDims() != 1 || res.Density.Len() != 3 {
		t.Fatalf("density = %v, want 1-D of length 3", res.Density)
	}
	if res.Density.At(1) != 0.9 {
		t.Errorf("density[1] = %v, want 0.9", res.Density.At(1))
	}
}

func TestExecute_DensityNotRequested(t *testing.T) {
	c, _ := newCalc(t, fakeEngine(t, infoBody), false)
	c.Set(params.KeyOutput, params.ScalarValue(params.String("wfs")))

	res, err := c.Execute(context.Background(), true)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Density != nil {
		t.Error("Density loaded although Output does not request it")
	}

	c2, _ := newCalc(t, fakeEngine(t, infoBody), false)
	res, err = c2.Execute(context.Background(), false)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Density != nil {
		t.Error("Density loaded although readDensity is false")
	}
}

func TestExecute_NotConvergedIsNotAnError(t *testing.T) {
	info := strings.Replace(infoBody, "SCF converged in 7 iterations", "SCF *not* converged", 1)
	c, _ := newCalc(t, fakeEngine(t, info), false)

	res, err := c.Execute(context.Background(), false)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Converged() || res.Iterations != 0 {
		t.Errorf("Iterations = %d, want 0", res.Iterations)
	}
	if len(res.Warnings) == 0 {
		t.Error("expected a convergence warning")
	}
}

func TestExecute_ParseFailureCleansUp(t *testing.T) {
	info := infoBody + "      Total       =        -0.6\n"
	c, folder := newCalc(t, fakeEngine(t, info), false)

	_, err := c.Execute(context.Background(), false)
	if !errors.Is(err, report.ErrDuplicateField) {
		t.Fatalf("Execute() error = %v, want ErrDuplicateField", err)
	}
	if _, err := os.Stat(folder); !os.IsNotExist(err) {
		t.Errorf("folder not removed after parse failure: %v", err)
	}
}

func TestExecute_EngineFailureCleansUp(t *testing.T) {
	script := filepath.Join(t.TempDir(), "fail.sh")
	if err := os.WriteFile(script, []byte("#!/bin/sh\necho boom\nexit 1\n"), 0755); err != nil {
		t.Fatal(err)
	}
	c, folder := newCalc(t, engine.NewRunner(script, 0, nil), false)

	_, err := c.Execute(context.Background(), false)
	var exitErr *engine.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("Execute() error = %v, want *engine.ExitError", err)
	}
	if _, err := os.Stat(folder); !os.IsNotExist(err) {
		t.Errorf("folder not removed after engine failure: %v", err)
	}
}

func TestExecute_EngineExitWithCompleteReport(t *testing.T) {
	script := filepath.Join(t.TempDir(), "late-fail.sh")
	body := "#!/bin/sh\nmkdir -p static\ncat > static/info <<'EOF'\n" + infoBody + "EOF\nexit 1\n"
	if err := os.WriteFile(script, []byte(body), 0755); err != nil {
		t.Fatal(err)
	}
	c, folder := newCalc(t, engine.NewRunner(script, 0, nil), false)

	res, err := c.Execute(context.Background(), false)
	if err != nil {
		t.Fatalf("Execute() error = %v, want results despite exit status", err)
	}
	if res.Iterations != 7 || res.TotalEnergy != -0.5 {
		t.Errorf("unexpected result: %+v", res)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "exited with status 1") {
		t.Errorf("Warnings = %v, want the exit status", res.Warnings)
	}
	if _, err := os.Stat(folder); !os.IsNotExist(err) {
		t.Errorf("folder not removed: %v", err)
	}
}

func TestOutput_LogsReportEvent(t *testing.T) {
	eventsDir := t.TempDir()
	events := logging.NewEventLogger(eventsDir, "debug")
	defer events.Close()

	c, err := New(Options{
		Folder: filepath.Join(t.TempDir(), "calc"),
		Runner: fakeEngine(t, infoBody),
		Events: events.ForRun("run-1"),
	})
	if err != nil {
		t.Fatal(err)
	}
	res, err := c.Execute(context.Background(), true)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	defer res.Release()

	data, err := os.ReadFile(filepath.Join(eventsDir, logging.EventsFile))
	if err != nil {
		t.Fatal(err)
	}
	var parsed string
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if strings.Contains(line, `"event":"report_parsed"`) {
			parsed = line
		}
	}
	if parsed == "" {
		t.Fatalf("no report_parsed event in:\n%s", data)
	}
	for _, want := range []string{`"iterations":7`, `"density_shape":[2,2,2]`, `"run_id":"run-1"`} {
		if !strings.Contains(parsed, want) {
			t.Errorf("report_parsed event missing %s: %s", want, parsed)
		}
	}
}

func TestExecute_KeepFolder(t *testing.T) {
	c, folder := newCalc(t, fakeEngine(t, infoBody), true)

	if _, err := c.Execute(context.Background(), false); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	log, err := os.ReadFile(filepath.Join(folder, LogFile))
	if err != nil {
		t.Fatalf("engine log missing: %v", err)
	}
	if !strings.Contains(string(log), "engine done") {
		t.Errorf("engine log = %q", log)
	}
}

func TestExecute_MarkerRemovedKeepsFolder(t *testing.T) {
	c, folder := newCalc(t, fakeEngine(t, infoBody), false)
	if err := os.Remove(filepath.Join(folder, workdir.MarkerFile)); err != nil {
		t.Fatal(err)
	}

	_, err := c.Execute(context.Background(), false)
	if !errors.Is(err, workdir.ErrNotOwned) {
		t.Fatalf("Execute() error = %v, want ErrNotOwned", err)
	}
	if _, err := os.Stat(folder); err != nil {
		t.Errorf("unowned folder removed: %v", err)
	}
}

func TestReadResult_MissingReport(t *testing.T) {
	_, err := ReadResult(t.TempDir(), params.NewModel(), false, nil)
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("ReadResult() error = %v, want ErrNotExist", err)
	}
}
