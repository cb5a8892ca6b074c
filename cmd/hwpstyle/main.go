// Command hwpstyle applies question/passage styles to saved HWP exam
// documents: it rewrites paragraph style ids, transplants the template's
// style definitions, and repairs zeroed emphasis font faces. Run it after
// the authoring application has closed and released the files.
package main

import (
	"context"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"hwpstyle"
)

func main() {
	cmd := &cli.Command{
		Name:      "hwpstyle",
		Usage:     "rewrite styles inside saved HWP exam documents",
		ArgsUsage: "file.hwp [file.hwp ...]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "template", Aliases: []string{"t"}, Usage: "reference template supplying style names and definitions"},
			&cli.StringFlag{Name: "question-style", Value: "문제", Usage: "style name for question paragraphs"},
			&cli.StringFlag{Name: "passage-style", Value: "지문", Usage: "style name for passage paragraphs"},
			&cli.BoolFlag{Name: "strict", Usage: "fail when a style cannot be resolved instead of substituting"},
			&cli.BoolFlag{Name: "faces-only", Usage: "only repair zeroed emphasis font faces"},
			&cli.BoolFlag{Name: "json", Usage: "print a JSON report per file"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "debug logging"},
		},
		Action: run,
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "hwpstyle:", err)
		os.Exit(1)
	}
}

func run(_ context.Context, cmd *cli.Command) error {
	if cmd.NArg() == 0 {
		return fmt.Errorf("no input files (see %s --help)", cmd.Name)
	}

	log, err := newLogger(cmd.Bool("verbose"))
	if err != nil {
		return err
	}
	defer log.Sync()

	engine := hwpstyle.New(hwpstyle.Options{
		QuestionStyle: cmd.String("question-style"),
		PassageStyle:  cmd.String("passage-style"),
		StyleSource:   cmd.String("template"),
		StrictStyles:  cmd.Bool("strict"),
	})

	for _, path := range cmd.Args().Slice() {
		if cmd.Bool("faces-only") {
			engine.ResetWarnings()
			changed, err := engine.PostProcessEmphasisFaces(path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			logOutcome(log, path, changed, engine.Warnings())
			continue
		}

		report, err := engine.Run(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if cmd.Bool("json") {
			out, err := report.JSON()
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			continue
		}
		logOutcome(log, path, report.Changed, report.Warnings)
	}
	return nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}

func logOutcome(log *zap.Logger, path string, changed bool, warnings []string) {
	for _, w := range warnings {
		log.Warn(w, zap.String("file", path))
	}
	if changed {
		log.Info("document updated", zap.String("file", path))
	} else {
		log.Info("no changes needed", zap.String("file", path))
	}
}
