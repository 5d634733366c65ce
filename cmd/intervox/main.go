// Command intervox runs a voice mock interview in the terminal: it
// analyzes a job description and CV, opens a live audio session with the
// AI interviewer over PulseAudio, and prints the transcript and the
// final evaluation.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"google.golang.org/genai"

	"github.com/intervox-ai/intervox/internal/config"
	"github.com/intervox-ai/intervox/internal/dotenv"
	"github.com/intervox-ai/intervox/pkg/audio/pulsedev"
	"github.com/intervox-ai/intervox/pkg/interview"
	"github.com/intervox-ai/intervox/pkg/live"
	"github.com/intervox-ai/intervox/pkg/playback"
	"github.com/intervox-ai/intervox/pkg/transcript"
)

type cliOptions struct {
	JDPath      string
	CVPath      string
	Culture     string
	UseSample   bool
	ListDevices bool
	Device      string
	Voice       string
	Verbose     bool
}

func parseOptions(args []string) (cliOptions, error) {
	opts := cliOptions{}
	fs := flag.NewFlagSet("intervox", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&opts.JDPath, "jd", "", "path to the job description text file")
	fs.StringVar(&opts.CVPath, "cv", "", "path to the candidate CV text file")
	fs.StringVar(&opts.Culture, "culture", "", "company culture description")
	fs.BoolVar(&opts.UseSample, "sample", false, "use the built-in sample job description and CV")
	fs.BoolVar(&opts.ListDevices, "list-devices", false, "list audio input devices and exit")
	fs.StringVar(&opts.Device, "device", "", "input device id or description substring (overrides INTERVOX_INPUT_DEVICE)")
	fs.StringVar(&opts.Voice, "voice", "", "interviewer voice (overrides INTERVOX_VOICE)")
	fs.BoolVar(&opts.Verbose, "v", false, "debug logging")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, err
	}
	if !opts.ListDevices && !opts.UseSample && (opts.JDPath == "" || opts.CVPath == "") {
		return cliOptions{}, errors.New("either -sample or both -jd and -cv are required")
	}
	return opts, nil
}

func loadInterviewData(opts cliOptions) (interview.InterviewData, error) {
	if opts.UseSample {
		data := interview.SampleInterview()
		if opts.Culture != "" {
			data.CompanyCulture = opts.Culture
		}
		return data, nil
	}

	jd, err := os.ReadFile(opts.JDPath)
	if err != nil {
		return interview.InterviewData{}, fmt.Errorf("read job description: %w", err)
	}
	cv, err := os.ReadFile(opts.CVPath)
	if err != nil {
		return interview.InterviewData{}, fmt.Errorf("read cv: %w", err)
	}
	return interview.InterviewData{
		JobDescription: string(jd),
		CandidateCV:    string(cv),
		CompanyCulture: opts.Culture,
	}, nil
}

func listDevices(stdout io.Writer) error {
	devices, err := pulsedev.ListInputDevices()
	if err != nil {
		return err
	}
	for _, dev := range devices {
		marker := " "
		if dev.Default {
			marker = "*"
		}
		status := "available"
		if !dev.Available {
			status = "unavailable"
		}
		if dev.Muted {
			status += ", muted"
		}
		fmt.Fprintf(stdout, "%s %s (%s) [%s]\n", marker, dev.ID, dev.Description, status)
	}
	return nil
}

func run(ctx context.Context, opts cliOptions, logger *slog.Logger, stdin io.Reader, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if opts.Device != "" {
		cfg.InputDevice = opts.Device
	}
	if opts.Voice != "" {
		cfg.Voice = opts.Voice
	}

	data, err := loadInterviewData(opts)
	if err != nil {
		return err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}

	output, err := pulsedev.OpenOutput()
	if err != nil {
		return fmt.Errorf("open playback: %w", err)
	}
	defer output.Close()
	scheduler := playback.NewScheduler(output, output, logger)

	session := interview.NewSession(interview.Config{
		Analyzer:  interview.NewService(client, cfg.TextModel),
		Transport: live.NewGeminiTransport(client),
		Player:    scheduler,
		OpenSource: func(push func([]float32)) (io.Closer, error) {
			return pulsedev.OpenMicrophone(cfg.InputDevice, push)
		},
		LiveModel: cfg.LiveModel,
		Voice:     cfg.Voice,
		Logger:    logger,
		OnPhase: func(phase interview.Phase) {
			fmt.Fprintf(stdout, "-- %s\n", phase)
		},
		OnState: func(state live.ConnectionState) {
			logger.Debug("connection state", "state", state)
		},
		OnTranscript: func(items []transcript.Item) {
			for _, item := range items {
				speaker := "you"
				if item.Role == transcript.RoleModel {
					speaker = "interviewer"
				}
				fmt.Fprintf(stdout, "[%s] %s\n", speaker, item.Text)
			}
		},
	})
	defer session.Close()

	fmt.Fprintln(stdout, "analyzing profile...")
	if err := session.Start(ctx, data); err != nil {
		return err
	}
	analysis := session.Analysis()
	fmt.Fprintf(stdout, "focus: %s\n", strings.Join(analysis.InterviewFocus, "; "))
	fmt.Fprintln(stdout, "interview is live. commands: /mute, /end, /quit")

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(stdin)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			switch line {
			case "/mute":
				if session.ToggleMute() {
					fmt.Fprintln(stdout, "microphone muted")
				} else {
					fmt.Fprintln(stdout, "microphone live")
				}
			case "/end":
				scheduler.Flush()
				report, err := session.EndInterview(ctx)
				if err != nil {
					return err
				}
				printReport(stdout, report)
				return nil
			case "/quit":
				return nil
			case "":
			default:
				fmt.Fprintf(stdout, "unknown command %q\n", line)
			}
		}
	}
}

func printReport(w io.Writer, report *interview.ReportData) {
	fmt.Fprintf(w, "\nscore: %d/100\nrecommendation: %s\n\n%s\n", report.Score, report.Recommendation, report.Summary)
	if len(report.Strengths) > 0 {
		fmt.Fprintln(w, "\nstrengths:")
		for _, s := range report.Strengths {
			fmt.Fprintf(w, "  + %s\n", s)
		}
	}
	if len(report.Weaknesses) > 0 {
		fmt.Fprintln(w, "weaknesses:")
		for _, s := range report.Weaknesses {
			fmt.Fprintf(w, "  - %s\n", s)
		}
	}
	if report.Details != "" {
		fmt.Fprintf(w, "\n%s\n", report.Details)
	}
}

func runMain(args []string) int {
	opts, err := parseOptions(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "intervox: %v\n", err)
		return 2
	}

	if err := dotenv.LoadFile(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "intervox: %v\n", err)
		return 1
	}

	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if opts.ListDevices {
		if err := listDevices(os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "intervox: %v\n", err)
			return 1
		}
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, logger, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "intervox: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(runMain(os.Args[1:]))
}
