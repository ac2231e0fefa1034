package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/florianilch/bpm-client/bpm"
)

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "authenticate with username and password and store the access token",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "username",
				Aliases:  []string{"u"},
				Usage:    "user to authenticate as",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "password",
				Aliases: []string{"p"},
				Usage:   "password (prompted for when omitted)",
			},
		},
		Action: withSession(loginAction),
	}
}

func loginAction(ctx context.Context, cmd *cli.Command, s *session) error {
	password := cmd.String("password")
	if !cmd.IsSet("password") {
		var err error
		if password, err = readPassword(cmd); err != nil {
			return err
		}
	}

	var opts []bpm.AuthOption
	if endpoint := s.cfg.Server.TokenEndpoint; endpoint != "" {
		opts = append(opts, bpm.WithTokenEndpoint(endpoint))
	}

	tok, err := s.client.Authenticate(ctx, cmd.String("username"), password, opts...)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	out := struct {
		TokenKey  string `json:"token_key"`
		TokenType string `json:"token_type,omitempty"`
		Expiry    string `json:"expiry,omitempty"`
		Scope     any    `json:"scope,omitempty"`
	}{
		TokenKey:  s.client.TokenKey(),
		TokenType: tok.TokenType,
		Scope:     tok.Extra("scope"),
	}
	if !tok.Expiry.IsZero() {
		out.Expiry = tok.Expiry.Format(time.RFC3339)
	}
	return printJSON(cmd, out)
}

// readPassword prompts on the terminal without echo, or reads one line from
// the command's input when it is not a terminal.
func readPassword(cmd *cli.Command) (string, error) {
	root := cmd.Root()
	if f, ok := root.Reader.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(root.ErrWriter, "Password: ")
		pw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(root.ErrWriter)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(pw), nil
	}

	line, err := bufio.NewReader(root.Reader).ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
