package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ceyewan/discovery/registry"
	"github.com/ceyewan/discovery/xerrors"
)

const (
	outputJSON = "json"
	outputID   = "id"
)

func staticCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "static",
		Short: "Manage static announcements",
	}

	cmd.AddCommand(staticAddCmd())
	cmd.AddCommand(staticShowCmd())
	cmd.AddCommand(staticDeleteCmd())
	return cmd
}

func staticAddCmd() *cobra.Command {
	var (
		ann        registry.StaticAnnouncement
		props      map[string]string
		rawJSON    string
		jsonFile   string
		outputMode string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a static announcement",
		Example: `  discovery static add -e prod -t web -p general -l http://10.0.0.1:8080 -D weight=3
  discovery static add --json '{"environment":"prod","type":"web","pool":"general"}'
  cat svc.json | discovery static add --json-file -`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output, err := parseOutput(outputMode)
			if err != nil {
				return err
			}
			fromFlags := flagsChanged(cmd, "environment", "type", "pool", "location", "property")
			if rawJSON != "" && jsonFile != "" {
				return xerrors.New("--json and --json-file are mutually exclusive")
			}
			if (rawJSON != "" || jsonFile != "") && fromFlags {
				return xerrors.New("service definition flags cannot be combined with --json or --json-file")
			}

			switch {
			case rawJSON == "-" || jsonFile == "-":
				if err := decodeAnnouncement(cmd.InOrStdin(), &ann); err != nil {
					return err
				}
			case rawJSON != "":
				if err := decodeAnnouncement(strings.NewReader(rawJSON), &ann); err != nil {
					return err
				}
			case jsonFile != "":
				f, err := os.Open(jsonFile)
				if err != nil {
					return xerrors.Wrapf(err, "open %s", jsonFile)
				}
				defer f.Close()
				if err := decodeAnnouncement(f, &ann); err != nil {
					return err
				}
			default:
				for _, name := range []string{"environment", "type", "pool"} {
					if !cmd.Flags().Changed(name) {
						return fmt.Errorf("missing argument --%s", name)
					}
				}
				if len(props) > 0 {
					ann.Properties = props
				}
			}

			svc, err := newClient(serverAddr).addStatic(cmd.Context(), &ann)
			if err != nil {
				return err
			}
			if output == outputID {
				fmt.Fprintln(cmd.OutOrStdout(), svc.ID)
				return nil
			}
			return writeJSON(cmd.OutOrStdout(), svc)
		},
	}

	cmd.Flags().StringVarP(&ann.Environment, "environment", "e", "", "Service definition: environment")
	cmd.Flags().StringVarP(&ann.Type, "type", "t", "", "Service definition: type")
	cmd.Flags().StringVarP(&ann.Pool, "pool", "p", "", "Service definition: pool")
	cmd.Flags().StringVarP(&ann.Location, "location", "l", "", "Service definition: location")
	cmd.Flags().StringToStringVarP(&props, "property", "D", nil, "Service property key=value (repeatable)")
	cmd.Flags().StringVarP(&rawJSON, "json", "j", "", "Entire service definition as raw JSON, '-' for stdin")
	cmd.Flags().StringVarP(&jsonFile, "json-file", "f", "", "File holding the service definition, '-' for stdin")
	cmd.Flags().StringVarP(&outputMode, "output", "o", outputJSON, "Output format: json or id")
	return cmd
}

func staticShowCmd() *cobra.Command {
	var outputMode string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "List static announcements",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output, err := parseOutput(outputMode)
			if err != nil {
				return err
			}
			services, err := newClient(serverAddr).listStatic(cmd.Context())
			if err != nil {
				return err
			}
			if output == outputID {
				for _, svc := range services.Services {
					fmt.Fprintln(cmd.OutOrStdout(), svc.ID)
				}
				return nil
			}
			return writeJSON(cmd.OutOrStdout(), services)
		},
	}

	cmd.Flags().StringVarP(&outputMode, "output", "o", outputJSON, "Output format: json or id")
	return cmd
}

func staticDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a static announcement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newClient(serverAddr).deleteStatic(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}

func flagsChanged(cmd *cobra.Command, names ...string) bool {
	for _, name := range names {
		if cmd.Flags().Changed(name) {
			return true
		}
	}
	return false
}

func parseOutput(mode string) (string, error) {
	switch m := strings.ToLower(mode); m {
	case outputJSON, outputID:
		return m, nil
	}
	return "", fmt.Errorf("invalid output format %q, want json or id", mode)
}

func decodeAnnouncement(r io.Reader, ann *registry.StaticAnnouncement) error {
	if err := json.NewDecoder(r).Decode(ann); err != nil {
		return xerrors.Wrap(err, "decode service definition")
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// client 依次尝试 --server 中逗号分隔的地址，直到某个地址给出应答
type client struct {
	bases []string
	http  *http.Client
}

func newClient(servers string) *client {
	var bases []string
	for _, s := range strings.Split(servers, ",") {
		if s = strings.TrimRight(strings.TrimSpace(s), "/"); s != "" {
			bases = append(bases, s)
		}
	}
	return &client{bases: bases, http: &http.Client{Timeout: 10 * time.Second}}
}

func (c *client) addStatic(ctx context.Context, ann *registry.StaticAnnouncement) (*registry.Service, error) {
	body, err := json.Marshal(ann)
	if err != nil {
		return nil, err
	}
	var svc registry.Service
	if err := c.do(ctx, http.MethodPost, "/v1/announcement/static", body, http.StatusCreated, &svc); err != nil {
		return nil, err
	}
	return &svc, nil
}

func (c *client) listStatic(ctx context.Context) (*registry.Services, error) {
	var services registry.Services
	if err := c.do(ctx, http.MethodGet, "/v1/announcement/static", nil, http.StatusOK, &services); err != nil {
		return nil, err
	}
	return &services, nil
}

func (c *client) deleteStatic(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/announcement/static/"+id, nil, http.StatusNoContent, nil)
}

func (c *client) do(ctx context.Context, method, path string, body []byte, want int, out any) error {
	if len(c.bases) == 0 {
		return xerrors.New("no server address")
	}
	var errs []error
	for _, base := range c.bases {
		err := c.once(ctx, method, base+path, body, want, out)
		if err == nil {
			return nil
		}
		var status *statusError
		if xerrors.As(err, &status) {
			// 服务端已明确拒绝，换地址也不会有不同结果
			return err
		}
		errs = append(errs, err)
	}
	return xerrors.Join(errs...)
}

func (c *client) once(ctx context.Context, method, url string, body []byte, want int, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return xerrors.Wrapf(err, "%s %s", method, url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &statusError{method: method, url: url, code: resp.StatusCode, body: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return xerrors.Wrapf(err, "decode response of %s %s", method, url)
	}
	return nil
}

type statusError struct {
	method string
	url    string
	code   int
	body   string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("%s %s: %d %s", e.method, e.url, e.code, http.StatusText(e.code))
	}
	return fmt.Sprintf("%s %s: %d %s: %s", e.method, e.url, e.code, http.StatusText(e.code), e.body)
}
