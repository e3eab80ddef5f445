// cmd/jobcrew/app.go
package main

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"jobcrew/internal/common/credentials"
	"jobcrew/internal/common/errors"
	"jobcrew/internal/common/logger"
	"jobcrew/internal/common/notify"
	"jobcrew/internal/crew"
	"jobcrew/internal/jobcrew"
)

var errRunFailed = stderrors.New("job search failed")

const rule = "======================================================================"
const thinRule = "----------------------------------------------------------------------"

type crewRunner interface {
	Run(ctx context.Context, inputs jobcrew.Inputs) (*crew.CrewOutput, error)
	ReportPath() string
}

type runRecorder interface {
	Start(ctx context.Context, in jobcrew.Inputs) (string, error)
	Finish(ctx context.Context, id, report string, totalTokens int, runErr error) error
}

type reportNotifier interface {
	Notify(ctx context.Context, r notify.Report) error
}

// app is the interactive session: precondition check, prompts, crew run and
// report display. Everything it talks to is injected so tests can drive it.
type app struct {
	in       *bufio.Reader
	out      io.Writer
	logger   logger.Logger
	reporter *errors.Reporter

	checkCredentials func(names []string) credentials.Result
	newRunner        func(ctx context.Context, creds credentials.Result) (crewRunner, error)

	// optional
	history   runRecorder
	notifier  reportNotifier
	recordRun func(ctx context.Context, status string, d time.Duration)
}

func (a *app) run(ctx context.Context) error {
	creds := a.checkCredentials(credentials.Required)
	if !creds.OK() {
		a.printMissing(creds.Missing)
		return nil
	}

	a.println("\n" + rule)
	a.println("🚀 Welcome to JobCrew - Your AI-Powered Job Search Assistant!")
	a.println(rule)

	inputs, ok := a.promptInputs(ctx)
	if !ok {
		return nil
	}

	a.println("\n" + thinRule)
	a.printf("🔎 Searching for: %s\n", inputs.Position)
	a.printf("📍 Location: %s\n", inputs.Location)
	a.printf("💰 Salary: %s\n", inputs.SalaryExpectations)
	a.printf("⏰ Type: %s\n", inputs.EmploymentType)
	a.println(thinRule)
	a.println("\n🤖 Our AI agents are working on finding the best matches...")
	a.println("⏳ This may take a few minutes...\n")

	start := time.Now()
	report, err := a.kickoff(ctx, creds, inputs)
	if err != nil {
		a.observe(ctx, "failed", time.Since(start))
		a.printFailure(err)
		return errRunFailed
	}
	a.observe(ctx, "completed", time.Since(start))
	a.sendReport(ctx, report.runID, inputs, report.path, report.text)
	return nil
}

type runReport struct {
	runID string
	path  string
	text  string
}

// kickoff builds the crew, runs it and shows the report. Building and
// running both sit behind the single catch-all in run.
func (a *app) kickoff(ctx context.Context, creds credentials.Result, inputs jobcrew.Inputs) (*runReport, error) {
	runner, err := a.newRunner(ctx, creds)
	if err != nil {
		return nil, err
	}

	runID := a.startHistory(ctx, inputs)
	result, err := runner.Run(ctx, inputs)
	if err != nil {
		a.finishHistory(ctx, runID, "", 0, err)
		return nil, err
	}

	path := runner.ReportPath()
	text := a.printReport(path, result.Raw)
	a.finishHistory(ctx, runID, text, result.Usage.TotalTokens, nil)
	return &runReport{runID: runID, path: path, text: text}, nil
}

func (a *app) printMissing(missing []string) {
	err := errors.NewMissingCredentialsError(missing)
	a.logger.WithError(err).Warn("credentials check failed", map[string]interface{}{
		"errorCode": string(errors.CodeOf(err)),
		"missing":   missing,
	})

	a.println("❌ Missing required environment variables:")
	for _, name := range missing {
		a.printf("   - %s\n", name)
	}
	a.println("\nPlease check your .env file and ensure all required API keys are set.")
}

func (a *app) promptInputs(ctx context.Context) (jobcrew.Inputs, bool) {
	var in jobcrew.Inputs
	prompts := []struct {
		label  string
		prompt string
		dst    *string
	}{
		{jobcrew.FieldPosition, "\n💼 Enter the position you're looking for: ", &in.Position},
		{jobcrew.FieldLocation, "📍 Enter your preferred location (or 'Remote'): ", &in.Location},
		{jobcrew.FieldSalaryExpectations, "💰 Enter your salary expectations (e.g., '$80,000 - $100,000'): ", &in.SalaryExpectations},
		{jobcrew.FieldEmploymentType, "⏰ Enter employment type (e.g., 'Full-time', 'Part-time', 'Contract'): ", &in.EmploymentType},
	}

	for _, p := range prompts {
		a.printf("%s", p.prompt)
		line, err := a.readLine(ctx)
		if err != nil {
			a.println("\n\n👋 Thanks for using JobCrew! Good luck with your job search!")
			return in, false
		}
		value := strings.TrimSpace(line)
		if value == "" {
			a.printf("❌ %s cannot be empty.\n", p.label)
			return in, false
		}
		*p.dst = value
	}
	return in, true
}

// readLine returns the next line, or an error on end of input or when ctx
// is cancelled (Ctrl+C).
func (a *app) readLine(ctx context.Context) (string, error) {
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := a.in.ReadString('\n')
		if err == io.EOF && line != "" {
			err = nil
		}
		ch <- result{line, err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		return r.line, r.err
	}
}

func (a *app) printFailure(err error) {
	a.printf("\n❌ %s\n", a.reporter.Report("job search", err))
	a.println("🔧 Debug info: Check that all agents and tasks are properly configured.")
	a.println("💡 Please verify your API keys and internet connection, then try again.")
}

// printReport shows the saved report, falling back to the raw crew result
// when no file was written. It returns what was displayed.
func (a *app) printReport(path, raw string) string {
	a.println("\n" + rule)
	a.println("✅ YOUR JOB SEARCH REPORT IS READY!")
	a.println(rule + "\n")

	report := raw
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			report = string(data)
		case os.IsNotExist(err):
			a.logger.Warn("report file not found, showing raw result", map[string]interface{}{"path": path})
		default:
			a.logger.Warn("report file unreadable, showing raw result", map[string]interface{}{
				"path":  path,
				"error": err.Error(),
			})
		}
	}
	a.println(report)

	a.println("\n" + rule)
	if path != "" {
		a.printf("💾 Report saved as: %s\n", path)
	}
	a.println("🎯 Good luck with your applications!")
	a.println(rule)
	return report
}

func (a *app) startHistory(ctx context.Context, in jobcrew.Inputs) string {
	if a.history == nil {
		return ""
	}
	id, err := a.history.Start(ctx, in)
	if err != nil {
		a.logger.Warn("could not record run start", map[string]interface{}{"error": err.Error()})
		return ""
	}
	return id
}

func (a *app) finishHistory(ctx context.Context, id, report string, tokens int, runErr error) {
	if a.history == nil || id == "" {
		return
	}
	// the run context may already be cancelled
	ctx = context.WithoutCancel(ctx)
	if err := a.history.Finish(ctx, id, report, tokens, runErr); err != nil {
		a.logger.Warn("could not record run result", map[string]interface{}{
			"runId": id,
			"error": err.Error(),
		})
	}
}

func (a *app) sendReport(ctx context.Context, runID string, in jobcrew.Inputs, path, report string) {
	if a.notifier == nil {
		return
	}
	err := a.notifier.Notify(ctx, notify.Report{
		RunID:    runID,
		Position: in.Position,
		Location: in.Location,
		Path:     path,
		Content:  report,
	})
	if err != nil {
		a.logger.Warn("report notification failed", map[string]interface{}{"error": err.Error()})
	}
}

func (a *app) observe(ctx context.Context, status string, d time.Duration) {
	if a.recordRun != nil {
		a.recordRun(ctx, status, d)
	}
}

func (a *app) println(s string) {
	fmt.Fprintln(a.out, s)
}

func (a *app) printf(format string, args ...interface{}) {
	fmt.Fprintf(a.out, format, args...)
}
