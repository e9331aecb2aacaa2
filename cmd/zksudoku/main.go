// Copyright (C) 2025 Logical Mechanism LLC
// SPDX-License-Identifier: GPL-3.0-only

// main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/consensys/gnark/logger"
	"github.com/rs/zerolog"

	"zksudoku/internal/field"
	"zksudoku/internal/game"
	"zksudoku/internal/httpapi"
	"zksudoku/internal/oauth"
	"zksudoku/internal/publish"
	"zksudoku/internal/sudoku"
	"zksudoku/internal/zkp"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func newLogger(stderr io.Writer, levelStr string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(levelStr)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: stderr}).Level(lvl).With().Timestamp().Logger()
	logger.Set(log)
	return log
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		fmt.Fprintln(stderr, "usage: zksudoku <setup|sample|prove|verify|serve> [flags]")
		return 2
	}

	switch args[0] {
	case "setup":
		setupCmd := flag.NewFlagSet("setup", flag.ContinueOnError)
		setupCmd.SetOutput(stderr)

		var dir, level string
		var force bool
		setupCmd.StringVar(&dir, "dir", "setup", "directory for the cached proving setup")
		setupCmd.BoolVar(&force, "force", false, "overwrite an existing setup cache")
		setupCmd.StringVar(&level, "log-level", "info", "debug|info|warn|error")
		if err := setupCmd.Parse(args[1:]); err != nil {
			return 2
		}
		log := newLogger(stderr, level)

		if zkp.SetupFilesExist(dir) && !force {
			fmt.Fprintf(stderr, "error: setup already exists in %s (use -force to overwrite)\n", dir)
			return 2
		}

		ccs, pk, vk, err := zkp.Setup()
		if err != nil {
			fmt.Fprintln(stderr, "error:", err)
			return 1
		}
		if err := zkp.SaveSetupFiles(ccs, pk, vk, dir); err != nil {
			fmt.Fprintln(stderr, "error:", err)
			return 1
		}
		log.Info().Int("constraints", ccs.GetNbConstraints()).Str("dir", dir).Msg("setup written")
		fmt.Fprintf(stdout, "setup written to %s (%d constraints)\n", dir, ccs.GetNbConstraints())
		return 0

	case "sample":
		sampleCmd := flag.NewFlagSet("sample", flag.ContinueOnError)
		sampleCmd.SetOutput(stderr)
		if err := sampleCmd.Parse(args[1:]); err != nil {
			return 2
		}

		e, err := field.NewSampler().Sample()
		if err != nil {
			fmt.Fprintln(stderr, "error:", err)
			return 1
		}
		fmt.Fprintln(stdout, e.String())
		fmt.Fprintln(stdout, e.Hex())
		return 0

	case "prove":
		proveCmd := flag.NewFlagSet("prove", flag.ContinueOnError)
		proveCmd.SetOutput(stderr)

		var gridPath, challengePath, setupDir, outPath, level string
		proveCmd.StringVar(&gridPath, "grid", "", "path to the candidate solution grid JSON ({\"grid\": [[...],...]})")
		proveCmd.StringVar(&challengePath, "challenge", "", "optional challenge grid JSON (defaults to the built-in puzzle)")
		proveCmd.StringVar(&setupDir, "setup", "setup", "directory with the cached proving setup")
		proveCmd.StringVar(&outPath, "out", "proof-export.json", "output path for the proof export")
		proveCmd.StringVar(&level, "log-level", "info", "debug|info|warn|error")
		if err := proveCmd.Parse(args[1:]); err != nil {
			return 2
		}
		if gridPath == "" {
			fmt.Fprintln(stderr, "error: -grid is required")
			proveCmd.Usage()
			return 2
		}
		log := newLogger(stderr, level)

		candidate, err := readGrid(gridPath)
		if err != nil {
			fmt.Fprintln(stderr, "error:", err)
			return 1
		}
		challenge := sudoku.DefaultChallenge
		if challengePath != "" {
			challenge, err = readGrid(challengePath)
			if err != nil {
				fmt.Fprintln(stderr, "error:", err)
				return 1
			}
		}

		export, err := prove(context.Background(), challenge, candidate, setupDir, log)
		if err != nil {
			fmt.Fprintln(stderr, "FAIL:", err)
			return 1
		}
		data, err := zkp.MarshalExport(export)
		if err != nil {
			fmt.Fprintln(stderr, "error:", err)
			return 1
		}
		if err := os.WriteFile(outPath, append(data, '\n'), 0o644); err != nil {
			fmt.Fprintln(stderr, "error:", err)
			return 1
		}
		fmt.Fprintf(stdout, "SUCCESS: proof verified and exported to %s\n", outPath)
		return 0

	case "verify":
		verifyCmd := flag.NewFlagSet("verify", flag.ContinueOnError)
		verifyCmd.SetOutput(stderr)

		var inPath, setupDir, level string
		verifyCmd.StringVar(&inPath, "in", "", "path to a proof export JSON file")
		verifyCmd.StringVar(&setupDir, "setup", "setup", "directory with the cached proving setup")
		verifyCmd.StringVar(&level, "log-level", "info", "debug|info|warn|error")
		if err := verifyCmd.Parse(args[1:]); err != nil {
			return 2
		}
		if inPath == "" {
			fmt.Fprintln(stderr, "error: -in is required")
			verifyCmd.Usage()
			return 2
		}
		log := newLogger(stderr, level)

		data, err := os.ReadFile(inPath)
		if err != nil {
			fmt.Fprintln(stderr, "error:", err)
			return 1
		}
		export, err := zkp.DecodeExport(data)
		if err != nil {
			fmt.Fprintln(stderr, "error:", err)
			return 1
		}
		artifact, err := zkp.ToArtifact(export)
		if err != nil {
			fmt.Fprintln(stderr, "error:", err)
			return 1
		}
		prover, err := zkp.NewProver(setupDir, log)
		if err != nil {
			fmt.Fprintln(stderr, "error:", err)
			return 1
		}
		ok, err := prover.VerifyProof(context.Background(), artifact)
		if err != nil {
			fmt.Fprintln(stderr, "error:", err)
			return 1
		}
		if !ok {
			fmt.Fprintln(stdout, "FAIL: proof did not verify")
			return 1
		}
		fmt.Fprintln(stdout, "SUCCESS: proof verified")
		return 0

	case "serve":
		serveCmd := flag.NewFlagSet("serve", flag.ContinueOnError)
		serveCmd.SetOutput(stderr)

		var addr, setupDir, dataDir, level string
		var clientID, authorizeURL, redirectURI, exchangeURL, gistAPI string
		serveCmd.StringVar(&addr, "addr", ":8080", "listen address")
		serveCmd.StringVar(&setupDir, "setup", "setup", "directory with the cached proving setup")
		serveCmd.StringVar(&dataDir, "data", "data", "directory for the pending OAuth flow")
		serveCmd.StringVar(&level, "log-level", "info", "debug|info|warn|error")
		serveCmd.StringVar(&clientID, "client-id", os.Getenv("ZKSUDOKU_CLIENT_ID"), "OAuth client id (empty disables publishing)")
		serveCmd.StringVar(&authorizeURL, "authorize-url", "https://github.com/login/oauth/authorize", "authorization endpoint")
		serveCmd.StringVar(&redirectURI, "redirect-uri", "http://localhost:8080/oauth/callback", "registered redirect URI")
		serveCmd.StringVar(&exchangeURL, "exchange-url", os.Getenv("ZKSUDOKU_EXCHANGE_URL"), "trusted token-exchange backend")
		serveCmd.StringVar(&gistAPI, "gist-api", "https://api.github.com", "gist service base URL")
		if err := serveCmd.Parse(args[1:]); err != nil {
			return 2
		}
		log := newLogger(stderr, level)

		prover, err := zkp.NewProver(setupDir, log)
		if err != nil {
			fmt.Fprintln(stderr, "error:", err)
			return 1
		}
		session, err := game.NewSession(sudoku.DefaultChallenge, prover, log)
		if err != nil {
			fmt.Fprintln(stderr, "error:", err)
			return 1
		}

		var flow *oauth.Flow
		var gists *publish.Client
		if clientID != "" {
			if exchangeURL == "" {
				fmt.Fprintln(stderr, "error: -exchange-url is required when -client-id is set")
				return 2
			}
			flow = oauth.NewFlow(oauth.Config{
				ClientID:     clientID,
				AuthorizeURL: authorizeURL,
				RedirectURI:  redirectURI,
				Scope:        "gist",
				ExchangeURL:  exchangeURL,
			}, oauth.NewFileStore(dataDir), nil, log)
			gists = publish.NewClient(gistAPI, nil, log)
		}

		mux := http.NewServeMux()
		httpapi.New(session, flow, gists, log).Register(mux)

		srv := &http.Server{
			Addr:              addr,
			Handler:           httpapi.RequestLogger(log, mux),
			ReadHeaderTimeout: 5 * time.Second,
		}
		log.Info().Str("addr", addr).Bool("publishing", flow != nil).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintln(stderr, "error:", err)
			return 1
		}
		return 0

	default:
		fmt.Fprintf(stderr, "unknown command %q\n", args[0])
		return 2
	}
}

// prove runs the full lifecycle against a candidate grid loaded from
// disk: validate, sample the session nonce, execute/prove/verify, and
// encode the export.
func prove(ctx context.Context, challenge, candidate sudoku.Grid, setupDir string, log zerolog.Logger) (zkp.Export, error) {
	if !sudoku.IsComplete(candidate) {
		r, c := sudoku.FirstEmpty(candidate)
		return zkp.Export{}, fmt.Errorf("grid incomplete: cell (%d,%d) is empty", r, c)
	}
	if ok, v := sudoku.CheckConsistent(candidate); !ok {
		return zkp.Export{}, fmt.Errorf("grid inconsistent: %s", v)
	}
	if !sudoku.MatchesChallenge(candidate, challenge) {
		return zkp.Export{}, fmt.Errorf("grid contradicts a challenge clue")
	}

	prover, err := zkp.NewProver(setupDir, log)
	if err != nil {
		return zkp.Export{}, err
	}

	session, err := game.NewSession(challenge, prover, log)
	if err != nil {
		return zkp.Export{}, err
	}
	for r := 0; r < 9; r++ {
		for c := 0; c < 9; c++ {
			if challenge[r][c] == 0 {
				if err := session.SetCell(r, c, candidate[r][c]); err != nil {
					return zkp.Export{}, err
				}
			}
		}
	}
	if ok, v := session.CheckSolution(); !ok {
		return zkp.Export{}, fmt.Errorf("solution rejected: %s", v)
	}
	if err := session.GenerateProof(ctx); err != nil {
		return zkp.Export{}, err
	}
	return session.Export()
}

func readGrid(path string) (sudoku.Grid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return sudoku.Grid{}, err
	}
	var g sudoku.Grid
	if err := json.Unmarshal(data, &g); err != nil {
		return sudoku.Grid{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return g, nil
}
