package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	erpclient "github.com/anujChoudhary-1712/erp-fn-sub001"
	"github.com/anujChoudhary-1712/erp-fn-sub001/credential"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	requestData    string
	requestQuery   []string
	requestForm    []string
	requestFiles   []string
	requestNoCache bool
	requestHeaders bool
)

var requestCmd = &cobra.Command{
	Use:   "request METHOD PATH",
	Short: "Send an authenticated request",
	Long: `Send one request with the stored session token.

A 401 triggers a single token refresh and one replay. The response body is written
to stdout; JSON bodies are indented.`,
	Example: `  erpctl request GET /api/orders --query status=open
  erpctl request POST /api/orders --data '{"item":"bolt","qty":3}'
  erpctl request PATCH /api/items/7 --form name=bolt --file image=./bolt.png`,
	Args: cobra.ExactArgs(2),
	RunE: runRequest,
}

func init() {
	requestCmd.Flags().StringVar(&requestData, "data", "", "JSON body")
	requestCmd.Flags().StringArrayVarP(&requestQuery, "query", "q", nil, "query parameter k=v (repeatable)")
	requestCmd.Flags().StringArrayVarP(&requestForm, "form", "F", nil, "multipart field k=v (repeatable)")
	requestCmd.Flags().StringArrayVar(&requestFiles, "file", nil, "multipart file field=path (repeatable)")
	requestCmd.Flags().BoolVar(&requestNoCache, "no-cache", false, "ask intermediaries not to serve a cached response")
	requestCmd.Flags().BoolVarP(&requestHeaders, "include", "i", false, "print the status line and headers")
}

func runRequest(cmd *cobra.Command, args []string) error {
	method := strings.ToUpper(args[0])
	path := args[1]

	req, err := buildRequest(method, path)
	if err != nil {
		return err
	}

	client, closeClient, err := newClient(cmd)
	if err != nil {
		return err
	}
	defer closeClient()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	token, err := client.Token(ctx)
	if err != nil && !errors.Is(err, credential.ErrNoToken) {
		return fmt.Errorf("read token: %w", err)
	}
	req.Token = token

	resp, err := client.Do(ctx, req)
	if err != nil {
		return err
	}
	logger.Debug("request finished",
		zap.String("request_id", resp.RequestID),
		zap.Int("status", resp.StatusCode),
		zap.Bool("retried", resp.Retried),
	)
	if err := printResponse(cmd.OutOrStdout(), resp, requestHeaders); err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("%s %s: %s", method, path, resp.Status)
	}
	return nil
}

// buildRequest turns the request flags into an erpclient.Request.
func buildRequest(method, path string) (*erpclient.Request, error) {
	query, err := parsePairs(requestQuery)
	if err != nil {
		return nil, fmt.Errorf("--query: %w", err)
	}

	req := &erpclient.Request{
		Method:  method,
		Path:    path,
		Query:   query,
		NoCache: requestNoCache,
	}

	hasForm := len(requestForm) > 0 || len(requestFiles) > 0
	switch {
	case hasForm && requestData != "":
		return nil, fmt.Errorf("--data cannot be combined with --form or --file")
	case hasForm:
		form, err := buildForm(requestForm, requestFiles)
		if err != nil {
			return nil, err
		}
		body, contentType, err := form.Encode()
		if err != nil {
			return nil, err
		}
		req.Body = body
		req.ContentType = contentType
		req.Accept = "multipart/form-data"
	case requestData != "":
		if !json.Valid([]byte(requestData)) {
			return nil, fmt.Errorf("--data is not valid JSON")
		}
		req.Body = []byte(requestData)
	}
	return req, nil
}

func buildForm(fields, files []string) (*erpclient.FormData, error) {
	form := erpclient.NewFormData()
	for _, field := range fields {
		name, value, ok := strings.Cut(field, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("--form: expected key=value, got %q", field)
		}
		form.Add(name, value)
	}

	for _, arg := range files {
		field, path, ok := strings.Cut(arg, "=")
		if !ok || field == "" || path == "" {
			return nil, fmt.Errorf("--file: expected field=path, got %q", arg)
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		err = form.AddFile(field, filepath.Base(path), f)
		f.Close()
		if err != nil {
			return nil, err
		}
	}
	return form, nil
}

// parsePairs parses k=v flags, keeping repeated keys in order.
func parsePairs(pairs []string) (url.Values, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	values := make(url.Values, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("expected key=value, got %q", pair)
		}
		values.Add(k, v)
	}
	return values, nil
}

func printResponse(w io.Writer, resp *erpclient.Response, headers bool) error {
	if headers {
		fmt.Fprintf(w, "%s\n", resp.Status)
		if err := resp.Header.Write(w); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}
	if len(resp.Body) == 0 {
		return nil
	}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		var out bytes.Buffer
		if err := json.Indent(&out, resp.Body, "", "  "); err == nil {
			out.WriteByte('\n')
			_, err = out.WriteTo(w)
			return err
		}
	}
	_, err := w.Write(resp.Body)
	return err
}
