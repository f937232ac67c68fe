package reporting

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/acarl005/stripansi"
	"github.com/ethereum/go-ethereum/log"

	"github.com/lipa-labs/payaudit/types"
)

const (
	AuditArtifactPrefix = "audit-report"
	TestArtifactPrefix  = "test-report"
)

// ArtifactSink defines the interface for writing report artifacts to a destination
type ArtifactSink interface {
	Write(name string, content []byte) error
}

// FileSink writes artifacts into a directory
type FileSink struct {
	dir string
}

// NewFileSink creates a new file sink rooted at dir, creating it if needed
func NewFileSink(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create report directory %s: %w", dir, err)
	}
	return &FileSink{dir: dir}, nil
}

// Dir returns the directory the sink writes into
func (fs *FileSink) Dir() string {
	return fs.dir
}

// Write writes the artifact to <dir>/<name>
func (fs *FileSink) Write(name string, content []byte) error {
	return os.WriteFile(filepath.Join(fs.dir, name), content, 0644)
}

// StdoutSink writes only text artifacts to stdout
type StdoutSink struct{}

// NewStdoutSink creates a new stdout sink
func NewStdoutSink() *StdoutSink {
	return &StdoutSink{}
}

// Write prints the content to stdout
func (ss *StdoutSink) Write(name string, content []byte) error {
	if filepath.Ext(name) != ".txt" {
		return nil
	}
	_, err := fmt.Print(string(content))
	return err
}

// Artifact is a rendered report in both of its export formats
type Artifact struct {
	Name string
	Text string
	JSON []byte
}

// TextName returns the file name of the text artifact
func (a Artifact) TextName() string {
	return a.Name + ".txt"
}

// JSONName returns the file name of the JSON artifact
func (a Artifact) JSONName() string {
	return a.Name + ".json"
}

// Exporter renders reports and hands the artifacts to its sinks
type Exporter struct {
	sinks   []ArtifactSink
	colored bool
	log     log.Logger
}

// NewExporter creates an exporter. Colored controls the table style; text
// written to sinks other than StdoutSink always has ANSI escapes removed.
func NewExporter(logger log.Logger, colored bool, sinks ...ArtifactSink) *Exporter {
	if logger == nil {
		logger = log.New()
		logger.Error("No logger provided, using default")
	}
	return &Exporter{sinks: sinks, colored: colored, log: logger}
}

// RenderAudit renders an audit report without writing it anywhere
func (e *Exporter) RenderAudit(report *types.AuditReport) (Artifact, error) {
	text, err := AuditTextFormatter{Colored: e.colored}.Format(report)
	if err != nil {
		return Artifact{}, err
	}
	data, err := JSONFormatter{}.Format(report)
	if err != nil {
		return Artifact{}, err
	}
	return Artifact{
		Name: artifactName(AuditArtifactPrefix, report.RunID),
		Text: text,
		JSON: data,
	}, nil
}

// RenderTests renders a test report without writing it anywhere
func (e *Exporter) RenderTests(report *types.TestReport) (Artifact, error) {
	text, err := TestTextFormatter{Colored: e.colored}.Format(report)
	if err != nil {
		return Artifact{}, err
	}
	data, err := JSONFormatter{}.Format(report)
	if err != nil {
		return Artifact{}, err
	}
	return Artifact{
		Name: artifactName(TestArtifactPrefix, report.RunID),
		Text: text,
		JSON: data,
	}, nil
}

// ExportAudit renders the audit report and writes it to every sink
func (e *Exporter) ExportAudit(report *types.AuditReport) (Artifact, error) {
	a, err := e.RenderAudit(report)
	if err != nil {
		return Artifact{}, err
	}
	return a, e.write(a)
}

// ExportTests renders the test report and writes it to every sink
func (e *Exporter) ExportTests(report *types.TestReport) (Artifact, error) {
	a, err := e.RenderTests(report)
	if err != nil {
		return Artifact{}, err
	}
	return a, e.write(a)
}

func (e *Exporter) write(a Artifact) error {
	var errs []error
	for _, sink := range e.sinks {
		text := a.Text
		if _, ok := sink.(*StdoutSink); !ok {
			text = stripansi.Strip(text)
		}
		if err := sink.Write(a.TextName(), []byte(text)); err != nil {
			errs = append(errs, fmt.Errorf("failed to write %s: %w", a.TextName(), err))
			continue
		}
		if err := sink.Write(a.JSONName(), a.JSON); err != nil {
			errs = append(errs, fmt.Errorf("failed to write %s: %w", a.JSONName(), err))
			continue
		}
		e.log.Debug("Report artifact written", "name", a.Name, "sink", fmt.Sprintf("%T", sink))
	}
	return errors.Join(errs...)
}

func artifactName(prefix, runID string) string {
	if runID == "" {
		return prefix
	}
	return prefix + "-" + runID
}
