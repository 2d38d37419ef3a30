package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/anujChoudhary-1712/erp-fn-sub001/credential"
	"github.com/anujChoudhary-1712/erp-fn-sub001/jwt"
	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage the stored session token",
}

var tokenSetCmd = &cobra.Command{
	Use:   "set TOKEN",
	Short: "Store a session token obtained at login",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		token := strings.TrimSpace(args[0])
		token = strings.TrimPrefix(token, "Bearer ")
		if token == "" {
			return errors.New("token is empty")
		}

		store, closeStore, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore()

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		return store.Set(ctx, token)
	},
}

var tokenShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the stored token and its unverified claims",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeStore, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore()

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		token, err := store.Get(ctx)
		if errors.Is(err, credential.ErrNoToken) {
			return errors.New("no token stored; run `erpctl token set TOKEN` after logging in")
		}
		if err != nil {
			return err
		}
		describeToken(cmd.OutOrStdout(), token, time.Now())
		return nil
	},
}

var tokenClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget the stored token (log out)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, closeClient, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer closeClient()

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		return client.Logout(ctx)
	},
}

func describeToken(w io.Writer, token string, now time.Time) {
	fmt.Fprintln(w, token)

	claims, err := jwt.Inspect(token)
	if err != nil {
		fmt.Fprintln(w, "(opaque token)")
		return
	}
	if claims.Subject != "" {
		fmt.Fprintf(w, "subject:  %s\n", claims.Subject)
	}
	if claims.Company != "" {
		fmt.Fprintf(w, "company:  %s\n", claims.Company)
	}
	if !claims.IssuedAt.IsZero() {
		fmt.Fprintf(w, "issued:   %s\n", claims.IssuedAt.UTC().Format(time.RFC3339))
	}
	if claims.ExpiresAt.IsZero() {
		return
	}
	state := "valid for " + claims.ExpiresAt.Sub(now).Round(time.Second).String()
	if !claims.ExpiresAt.After(now) {
		state = "expired " + now.Sub(claims.ExpiresAt).Round(time.Second).String() + " ago"
	}
	fmt.Fprintf(w, "expires:  %s (%s)\n", claims.ExpiresAt.UTC().Format(time.RFC3339), state)
}
