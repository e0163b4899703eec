package config

import (
	"github.com/spf13/cobra"
)

// RegisterParseFlags attaches the message-parsing flags shared by every
// command that reads mail.
func RegisterParseFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("charset", "", "Fallback charset for text parts without a usable declared one")
	flags.Bool("detect-charset", true, "Probe undeclared text parts for their actual charset")
	flags.Int("max-depth", 0, "Maximum MIME nesting depth before truncation")
}

// RegisterRenderFlags attaches the output and rendering flags shared by the
// converting commands.
func RegisterRenderFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.Bool("html", false, "Write assembled HTML instead of rendering a PDF")
	flags.Bool("hide-headers", false, "Omit the From/Subject/To/Date banner from the output")
	flags.BoolP("extract", "e", false, "Extract attachments alongside the output")
	flags.StringP("attachment-dir", "a", "", "Directory for extracted attachments (default <output stem>-attachments)")
	flags.String("wkhtmltopdf", "", "Path to the wkhtmltopdf binary (default found on PATH)")
}

// RegisterBatchFlags attaches the flags shared by the directory and mbox
// batch commands.
func RegisterBatchFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.Int("workers", 0, "Number of concurrent conversion workers")
	flags.String("history", "", "SQLite conversion history database (empty disables recording)")
}

// RegisterServerFlags attaches the web UI listener flags.
func RegisterServerFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("host", "", "Host to bind the web UI to")
	flags.String("port", "", "Port to bind the web UI to")
}

// FromCommand loads the configuration file at path (defaults when empty) and
// layers the command's changed flags on top, so flags always win over file
// values. Flags a command never registered are simply not consulted.
func FromCommand(cmd *cobra.Command, path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()

	if flags.Changed("charset") {
		if cfg.DefaultCharset, err = flags.GetString("charset"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("detect-charset") {
		if cfg.DetectCharset, err = flags.GetBool("detect-charset"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("max-depth") {
		if cfg.MaxDepth, err = flags.GetInt("max-depth"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("html") {
		if cfg.HTMLOutput, err = flags.GetBool("html"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("hide-headers") {
		if cfg.HideHeaders, err = flags.GetBool("hide-headers"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("extract") {
		if cfg.ExtractFiles, err = flags.GetBool("extract"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("attachment-dir") {
		if cfg.AttachmentDir, err = flags.GetString("attachment-dir"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("wkhtmltopdf") {
		if cfg.WkhtmltopdfPath, err = flags.GetString("wkhtmltopdf"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("workers") {
		if cfg.Workers, err = flags.GetInt("workers"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("history") {
		if cfg.HistoryPath, err = flags.GetString("history"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("host") {
		if cfg.Host, err = flags.GetString("host"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("port") {
		if cfg.Port, err = flags.GetString("port"); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
