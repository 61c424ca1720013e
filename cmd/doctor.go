package cmd

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/matthoffner/wizardcoder-sandbox/internal/config"
)

var chromeBinaries = []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "headless-shell"}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration and connectivity",
	Long: `Run a health check on your wizard setup.
Verifies the configuration, endpoint reachability, the preview address and
whether headless Chrome is available for rendered previews.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		green := color.New(color.FgGreen)
		red := color.New(color.FgRed)
		yellow := color.New(color.FgYellow)
		dim := color.New(color.FgHiBlack)
		cyan := color.New(color.FgCyan, color.Bold)

		cyan.Fprintf(os.Stderr, "\n  🩺 wizard doctor\n\n")

		pass, fail, warn := 0, 0, 0

		check := func(name string, fn func() (string, error)) {
			detail, err := fn()
			if err != nil {
				if strings.HasPrefix(err.Error(), "warn:") {
					yellow.Fprintf(os.Stderr, "  ⚠ %s\n", name)
					dim.Fprintf(os.Stderr, "    %s\n", strings.TrimPrefix(err.Error(), "warn:"))
					warn++
				} else {
					red.Fprintf(os.Stderr, "  ✗ %s\n", name)
					dim.Fprintf(os.Stderr, "    %s\n", err.Error())
					fail++
				}
			} else {
				green.Fprintf(os.Stderr, "  ✓ %s", name)
				if detail != "" {
					dim.Fprintf(os.Stderr, " — %s", detail)
				}
				fmt.Fprintln(os.Stderr)
				pass++
			}
		}

		check("wizard binary", func() (string, error) {
			path, err := os.Executable()
			if err != nil {
				return "", errors.New("could not find wizard binary")
			}
			return fmt.Sprintf("%s (%s)", path, version), nil
		})

		cfg, cfgErr := config.Load(cfgFile, cmd.Flags())
		check("Configuration", func() (string, error) {
			if cfgErr != nil {
				return "", cfgErr
			}
			path := cfgFile
			if path == "" {
				path = config.Path()
			}
			if _, err := os.Stat(path); err != nil {
				return "defaults (no config file)", nil
			}
			return path, nil
		})
		if cfgErr != nil {
			d := config.Defaults()
			cfg = &d
		}

		check("Endpoint reachable", func() (string, error) {
			client := &http.Client{Timeout: 5 * time.Second}
			resp, err := client.Get(cfg.APIURL)
			if err != nil {
				return "", fmt.Errorf("could not connect to %s", cfg.APIURL)
			}
			resp.Body.Close()
			if resp.StatusCode >= 500 {
				return "", fmt.Errorf("warn:%s answered %d", cfg.APIURL, resp.StatusCode)
			}
			return fmt.Sprintf("%s (%s body)", cfg.APIURL, cfg.Endpoint), nil
		})

		check("API key", func() (string, error) {
			if cfg.APIKey != "" {
				return "set", nil
			}
			if cfg.Endpoint == "openai" {
				return "", errors.New("warn:openai endpoints usually need a key — run: wizard config set api_key <key>")
			}
			return "not needed", nil
		})

		check(fmt.Sprintf("Preview address (%s)", cfg.Preview.Addr), func() (string, error) {
			ln, err := net.Listen("tcp", cfg.Preview.Addr)
			if err != nil {
				return "", fmt.Errorf("warn:cannot listen: %v", err)
			}
			ln.Close()
			return "free", nil
		})

		check("Headless Chrome", func() (string, error) {
			if cfg.Preview.ChromePath != "" {
				if _, err := os.Stat(cfg.Preview.ChromePath); err != nil {
					return "", fmt.Errorf("chrome_path %s not found", cfg.Preview.ChromePath)
				}
				return cfg.Preview.ChromePath, nil
			}
			for _, name := range chromeBinaries {
				if path, err := exec.LookPath(name); err == nil {
					return path, nil
				}
			}
			return "", errors.New("warn:not found — needed only for --chrome and --screenshot")
		})

		check("Config directory", func() (string, error) {
			dir := config.Dir()
			info, err := os.Stat(dir)
			if err != nil {
				return "", errors.New("warn:~/.wizard-sandbox not found — it will be created on first use")
			}
			if !info.IsDir() {
				return "", errors.New("~/.wizard-sandbox exists but is not a directory")
			}
			return dir, nil
		})

		check("System info", func() (string, error) {
			return fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH), nil
		})

		fmt.Fprintln(os.Stderr)
		total := pass + fail + warn
		if fail == 0 && warn == 0 {
			green.Fprintf(os.Stderr, "  All %d checks passed. You're good to go.\n\n", total)
		} else if fail == 0 {
			yellow.Fprintf(os.Stderr, "  %d passed, %d warnings. Everything works, but some things could be better.\n\n", pass, warn)
		} else {
			red.Fprintf(os.Stderr, "  %d passed, %d failed, %d warnings. Fix the failures above.\n\n", pass, fail, warn)
		}

		return nil
	},
}
