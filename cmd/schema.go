package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wawrzek/carbon-multi-resize/lib"
)

var schemaCmd = &cobra.Command{
	Use:   "schema [whisper-dir]",
	Args:  cobra.MaximumNArgs(1),
	Short: "count whisper files per storage schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := loadConfig()
		if err != nil {
			return err
		}
		storage, _, err := loadRegistries(conf)
		if err != nil {
			return err
		}
		whisperDir := whisperDirArg(conf, args)
		files, err := findFiles(whisperDir)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			return fmt.Errorf("no .wsp files found under %s", whisperDir)
		}

		for _, i := range lib.CountDefinitions(storage, whisperDir, files) {
			fmt.Printf("[%s] %s %s > %d\n",
				i.Definition.Name,
				i.Definition.Matcher,
				lib.FormatRetentionList(i.Definition.Payload),
				i.Count,
			)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}
