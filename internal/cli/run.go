package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/samvad-hq/httpbridge/pkg/bridge"
	"github.com/samvad-hq/httpbridge/pkg/headers"
)

// RequestFile is the YAML document the run command executes.
type RequestFile struct {
	Requests []FileRequest `yaml:"requests"`
}

// FileRequest is one entry of a request file.
type FileRequest struct {
	Name    string            `yaml:"name"`
	Method  string            `yaml:"method"`
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
	Body    string            `yaml:"body"`
	Timeout time.Duration     `yaml:"timeout"`
	// ExpectStatus fails the entry when the response status differs.
	ExpectStatus int `yaml:"expect_status"`
}

// LoadRequestFile reads and validates a request file.
func LoadRequestFile(path string) (*RequestFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read request file: %w", err)
	}
	return ParseRequestFile(data)
}

// ParseRequestFile decodes a request file. Unknown keys are rejected.
func ParseRequestFile(data []byte) (*RequestFile, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var rf RequestFile
	if err := dec.Decode(&rf); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("request file is empty")
		}
		return nil, fmt.Errorf("parse request file: %w", err)
	}
	if len(rf.Requests) == 0 {
		return nil, fmt.Errorf("request file has no requests")
	}
	for i := range rf.Requests {
		r := &rf.Requests[i]
		r.Method = strings.ToUpper(strings.TrimSpace(r.Method))
		if r.Method == "" {
			r.Method = "GET"
		}
		if r.Name == "" {
			r.Name = fmt.Sprintf("request %d", i+1)
		}
		if strings.TrimSpace(r.URL) == "" {
			return nil, fmt.Errorf("%s: url is required", r.Name)
		}
	}
	return &rf, nil
}

type runFlags struct {
	showBody  bool
	chunkSize int
	failFast  bool
}

func (c *CLI) runCommand() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run <file.yaml>",
		Short: "Execute the requests listed in a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rf, err := LoadRequestFile(args[0])
			if err != nil {
				return exitErr(ExitUsageError, err)
			}
			if f.chunkSize <= 0 {
				return exitErr(ExitUsageError, fmt.Errorf("--chunk-size must be positive"))
			}
			return c.withBridge(cmd.Context(), func(b *bridge.Bridge) error {
				return runRequests(cmd.OutOrStdout(), b, rf, f)
			})
		},
	}
	cmd.Flags().BoolVar(&f.showBody, "show-body", false, "print each response body")
	cmd.Flags().IntVar(&f.chunkSize, "chunk-size", defaultChunkSize, "bytes pulled per read call")
	cmd.Flags().BoolVar(&f.failFast, "fail-fast", false, "stop at the first failing request")
	return cmd
}

func runRequests(w io.Writer, b *bridge.Bridge, rf *RequestFile, f runFlags) error {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	passed, failed := 0, 0
	worst := ExitSuccess
	for _, r := range rf.Requests {
		code, err := runOne(w, b, r, f)
		if err != nil {
			failed++
			fmt.Fprintf(w, "%s %s: %v\n", red("FAIL"), bold(r.Name), err)
			if code > worst {
				worst = code
			}
			if f.failFast {
				break
			}
			continue
		}
		passed++
	}

	fmt.Fprintf(w, "\n%s passed, %s failed\n", green(passed), red(failed))
	if failed > 0 {
		return exitErr(worst, fmt.Errorf("%d of %d requests failed", failed, len(rf.Requests)))
	}
	return nil
}

func runOne(w io.Writer, b *bridge.Bridge, r FileRequest, f runFlags) (int, error) {
	hdrs, err := headers.Encode(r.Headers)
	if err != nil {
		return ExitUsageError, err
	}
	timeoutMs, err := toMillis(r.Timeout)
	if err != nil {
		return ExitUsageError, err
	}
	var body []byte
	if r.Body != "" {
		body = []byte(r.Body)
	}

	res := b.Request(r.Method, r.URL, hdrs, body, timeoutMs)
	if res.Code != bridge.OK {
		return exitCodeFor(res.Code), fmt.Errorf("%s (%s)", lastError(b), res.Code)
	}
	defer b.Free(res.Handle)

	var sink bytes.Buffer
	if err := streamBody(b, res.Handle, f.chunkSize, &sink); err != nil {
		return ExitCode(err), err
	}

	statusColor(res.Status).Fprintf(w, "%s %s %s -> %d (%d bytes)\n", r.Method, r.Name, r.URL, res.Status, res.Length)
	if f.showBody && sink.Len() > 0 {
		fmt.Fprintf(w, "%s\n", sink.String())
	}
	if r.ExpectStatus != 0 && int(res.Status) != r.ExpectStatus {
		return ExitRequestFailure, fmt.Errorf("expected status %d, got %d", r.ExpectStatus, res.Status)
	}
	return ExitSuccess, nil
}
