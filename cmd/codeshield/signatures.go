package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/brad07/codeshield/pkg/api"
	"github.com/brad07/codeshield/pkg/bootstrap"
	"github.com/brad07/codeshield/pkg/config"
	"github.com/brad07/codeshield/pkg/output"
	"github.com/brad07/codeshield/pkg/signatures/packs"
)

type signaturesOptions struct {
	language   string
	customPath string
	listPacks  bool
	json       bool
}

func newSignaturesCmd(root *rootOptions) *cobra.Command {
	opts := &signaturesOptions{}

	cmd := &cobra.Command{
		Use:   "signatures",
		Short: "List the active vulnerability signatures",
		Example: `  $ codeshield signatures
  $ codeshield signatures --language python
  $ codeshield signatures --packs`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			if opts.listPacks {
				return printPacks(w)
			}

			var (
				cfg *config.Config
				err error
			)
			if root.configPath != "" {
				cfg, err = config.LoadFrom(root.configPath, ".")
			} else {
				cfg, err = config.Load(".")
			}
			if err != nil {
				return err
			}
			if opts.customPath != "" {
				cfg.Signatures.CustomPath = opts.customPath
			}

			reg, err := bootstrap.Registry(cfg.Signatures)
			if err != nil {
				return err
			}

			sigs := reg.All()
			if opts.language != "" {
				sigs = reg.Applicable(opts.language)
			}
			resp := api.NewSignaturesResponse(opts.language, reg.Languages(), sigs)

			if opts.json {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}
			printSignatures(w, resp)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.language, "language", "l", "", "Only list signatures that apply to this language")
	cmd.Flags().StringVar(&opts.customPath, "signatures", "", "Additional signature pack file (YAML)")
	cmd.Flags().BoolVar(&opts.listPacks, "packs", false, "List the built-in signature packs")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print JSON")
	return cmd
}

func printSignatures(w io.Writer, resp api.SignaturesResponse) {
	s := output.DefaultStyles()
	for _, sig := range resp.Signatures {
		fmt.Fprintf(w, "%s %s %s\n", s.Badge(sig.Severity).Render(strings.ToUpper(string(sig.Severity))),
			s.Title.Render(sig.ID), s.Muted.Render(sig.Name))
		meta := "languages: " + strings.Join(sig.Languages, ", ")
		if sig.CWE != "" {
			meta += "  " + sig.CWE
		}
		fmt.Fprintf(w, "    %s\n", s.Muted.Render(meta))
	}
	fmt.Fprintf(w, "\n%d signatures", resp.Count)
	if resp.Language != "" {
		fmt.Fprintf(w, " for %s", resp.Language)
	}
	fmt.Fprintln(w)
}

func printPacks(w io.Writer) error {
	infos, err := packs.ListAll()
	if err != nil {
		return err
	}
	s := output.DefaultStyles()
	for _, p := range infos {
		fmt.Fprintf(w, "%s %s\n", s.Title.Render(string(p.Name)), s.Muted.Render(fmt.Sprintf("v%s, %d signatures", p.Version, p.SignatureCount)))
		if p.Description != "" {
			fmt.Fprintf(w, "    %s\n", p.Description)
		}
	}
	return nil
}
