package main

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vsoch/gosmeagle/internal/logging"
	"github.com/vsoch/gosmeagle/parsers/file"
	"github.com/vsoch/gosmeagle/pkg/corpus"
)

var (
	outputPath string
	pretty     bool
)

var generateCmd = &cobra.Command{
	Use:   "generate <binary> [binary...]",
	Short: "generate an ABI corpus for one or more shared libraries",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runGenerate,
}

func init() {
	generateCmd.Flags().StringVarP(&outputPath, "output", "o", "", "write the corpus to this file instead of stdout")
	generateCmd.Flags().BoolVar(&pretty, "pretty", false, "indent the JSON output")
}

// buildOne opens path and builds its corpus. A non-amd64 architecture is
// not fatal to the run (spec §4.5/§7 policy 1): it is logged and the
// path is skipped so surrounding binaries still get processed.
func buildOne(path string, log *logrus.Entry) (*corpus.Corpus, error) {
	lib, err := file.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %q", path)
	}
	defer lib.Close()

	if arch := lib.Architecture(); arch != "x86_64" {
		log.Warnf("skipping %q: unsupported architecture %q, gosmeagle only classifies x86_64", path, arch)
		return nil, nil
	}

	if err := lib.Walk(); err != nil {
		return nil, errors.Wrapf(err, "walking symbols of %q", path)
	}
	log.Infof("%s: found %d functions, %d variables, %d call sites, %d inlines",
		path, len(lib.Functions), len(lib.Variables), len(lib.CallSites), len(lib.Inlines))

	return corpus.Build(lib, log), nil
}

func runGenerate(cmd *cobra.Command, args []string) error {
	log := logging.New("generate")

	corpora := make([]*corpus.Corpus, 0, len(args))
	for _, path := range args {
		c, err := buildOne(path, log)
		if err != nil {
			return err
		}
		if c != nil {
			corpora = append(corpora, c)
		}
	}

	// A single binary that was not skipped encodes as the bare corpus
	// object (matches §6's schema exactly); otherwise the output is a JSON
	// array of the corpora that were built (empty if all were skipped).
	var encode interface{} = corpora
	if len(args) == 1 && len(corpora) == 1 {
		encode = corpora[0]
	}

	var out []byte
	var err error
	if pretty {
		out, err = json.MarshalIndent(encode, "", "  ")
	} else {
		out, err = json.Marshal(encode)
	}
	if err != nil {
		return errors.Wrap(err, "encoding corpus")
	}
	out = append(out, '\n')

	if outputPath == "" {
		_, err = os.Stdout.Write(out)
		return err
	}

	if err := os.WriteFile(outputPath, out, 0o644); err != nil {
		return errors.Wrapf(err, "writing %q", outputPath)
	}
	log.Infof("wrote corpus to %q", outputPath)
	return nil
}
