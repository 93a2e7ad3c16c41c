package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vorthain/vorthain-vortex"
	"github.com/vorthain/vorthain-vortex/internal/json"
)

type sendFlags struct {
	method  string
	params  map[string]string
	query   map[string]string
	headers map[string]string
	body    string
}

func (a *app) sendCommand() *cobra.Command {
	var f sendFlags
	cmd := &cobra.Command{
		Use:   "send <endpoint>",
		Short: "Send one request and print the result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			ctx, cancel := context.WithTimeout(ctx, requestTimeout)
			defer cancel()

			client, err := a.client()
			if err != nil {
				fmt.Fprintln(a.stderr, describe(err))
				return errRequestFailed
			}
			defer client.Destroy()

			value, err := a.send(ctx, client, args[0], f)
			if err != nil {
				fmt.Fprintln(a.stderr, describe(err))
				return errRequestFailed
			}
			return a.print(value)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.method, "method", "X", "GET", "HTTP method")
	flags.StringToStringVarP(&f.params, "param", "p", nil, "Path parameter in name=value form")
	flags.StringToStringVarP(&f.query, "query", "q", nil, "Query parameter in name=value form")
	flags.StringToStringVarP(&f.headers, "header", "H", nil, "Request header in name=value form")
	flags.StringVarP(&f.body, "body", "d", "", "Request body; sent as JSON when it parses as JSON")
	return cmd
}

func (a *app) send(ctx context.Context, client *vortex.Client, name string, f sendFlags) (any, error) {
	ep, err := client.Endpoint(name)
	if err != nil {
		return nil, err
	}

	b := ep.Method(strings.ToUpper(f.method))
	if len(f.params) > 0 {
		b.PathParams(toAny(f.params))
	}
	if len(f.query) > 0 {
		b.Search(toAny(f.query))
	}
	if len(f.headers) > 0 {
		b.Settings(&vortex.Settings{Headers: f.headers})
	}
	if f.body != "" {
		b.Body(decodeBody(f.body))
	}
	return b.Send(ctx)
}

// decodeBody returns the parsed value of a JSON body, or the raw text.
func decodeBody(raw string) any {
	var v any
	if json.Valid([]byte(raw)) && json.Unmarshal([]byte(raw), &v) == nil {
		return v
	}
	return raw
}

func toAny(in map[string]string) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (a *app) print(value any) error {
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		_, err := fmt.Fprintln(a.stdout, v)
		return err
	case []byte:
		_, err := a.stdout.Write(v)
		return err
	case vortex.Blob:
		_, err := fmt.Fprintf(a.stdout, "<%s, %d bytes>\n", v.Type, len(v.Data))
		return err
	}

	out, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	_, err = fmt.Fprintln(a.stdout, string(out))
	return err
}
