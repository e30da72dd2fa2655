// cmd_inspect.go - Commands zum Pruefen von Tokenizer, Encoder und Scheduler
// Hauptfunktionen: SmokeHandler, TokenizeHandler, ScheduleHandler
package cmd

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mneves75/z-image-go/envconfig"
	"github.com/mneves75/z-image-go/imagegen/models/qwen3"
	"github.com/mneves75/z-image-go/imagegen/models/zimage"
	"github.com/mneves75/z-image-go/imagegen/tensor"
	"github.com/mneves75/z-image-go/logutil"
)

// newSmokeCmd - Erstellt den smoke Command
func newSmokeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Run a fast text-encoder smoke test (no image generation)",
		Args:  cobra.NoArgs,
		RunE:  SmokeHandler,
	}
	cmd.Flags().String("weights", envconfig.Weights(), "Weights root (expects text_encoder dir + config + shards)")
	cmd.Flags().String("prompt", "smoke test", "Prompt text to encode")
	cmd.Flags().Bool("template", false, "Wrap the prompt in the chat template")
	return cmd
}

// SmokeHandler - Laedt Tokenizer und Text-Encoder und gibt Statistiken der Hidden States aus
func SmokeHandler(cmd *cobra.Command, _ []string) error {
	weights, _ := cmd.Flags().GetString("weights")
	prompt, _ := cmd.Flags().GetString("prompt")
	template, _ := cmd.Flags().GetBool("template")
	root := envconfig.ExpandHome(weights)

	ctx := logutil.Component(cmd.Context(), "pipeline")
	enc, err := qwen3.Load(ctx, filepath.Join(root, "text_encoder"))
	if err != nil {
		return err
	}
	tok, err := loadTokenizer(root)
	if err != nil {
		return err
	}

	hidden, ids := enc.EncodePrompt(tok, prompt, template)
	if len(ids) == 0 {
		return errors.New("prompt produced no tokens")
	}
	if !tensor.AllFinite(hidden) {
		return errors.New("text encoder produced non-finite values")
	}
	mean, std := tensor.MeanStd(hidden)
	fmt.Fprintf(cmd.OutOrStdout(), "Smoke OK - tokens %d | mean %.6f | std %.6f\n", len(ids), mean, std)
	return nil
}

// newTokenizeCmd - Erstellt den tokenize Command
func newTokenizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokenize [PROMPT]",
		Short: "Print the token ids of a prompt",
		Args:  cobra.MaximumNArgs(1),
		RunE:  TokenizeHandler,
	}
	cmd.Flags().String("weights", envconfig.Weights(), "Directory holding vocab.json and merges.txt (or a tokenizer subdirectory)")
	cmd.Flags().StringP("prompt", "p", "", "Prompt text (alternative to the argument)")
	cmd.Flags().Bool("template", false, "Wrap the prompt in the chat template")
	cmd.Flags().Bool("table", false, "Print id, symbol and decoded text per token")
	return cmd
}

// TokenizeHandler - Gibt die IDs als Liste oder Tabelle aus
func TokenizeHandler(cmd *cobra.Command, args []string) error {
	weights, _ := cmd.Flags().GetString("weights")
	prompt, _ := cmd.Flags().GetString("prompt")
	template, _ := cmd.Flags().GetBool("template")
	asTable, _ := cmd.Flags().GetBool("table")
	if len(args) > 0 {
		prompt = args[0]
	}

	tok, err := loadTokenizer(weights)
	if err != nil {
		return err
	}
	if template {
		prompt = qwen3.ApplyChatTemplate(prompt, false)
	}
	ids := tok.Encode(prompt)

	out := cmd.OutOrStdout()
	if !asTable {
		parts := make([]string, len(ids))
		for i, id := range ids {
			parts[i] = strconv.Itoa(int(id))
		}
		fmt.Fprintln(out, strings.Join(parts, " "))
		return nil
	}

	table := newTable(out, "ID", "SYMBOL", "TEXT")
	for _, id := range ids {
		symbol, _ := tok.Token(id)
		text := strconv.Quote(tok.Decode([]int32{id}))
		table.Append([]string{strconv.Itoa(int(id)), truncateCell(symbol, 32), truncateCell(text, 32)})
	}
	table.Render()
	fmt.Fprintf(out, "%d tokens\n", len(ids))
	return nil
}

// newScheduleCmd - Erstellt den schedule Command
func newScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Print the FlowMatch Euler timesteps and sigmas",
		Args:  cobra.NoArgs,
		RunE:  ScheduleHandler,
	}
	cmd.Flags().Int("steps", 9, "Number of inference steps")
	cmd.Flags().Float32("shift", 0, "Timestep shift (0 uses the config value)")
	cmd.Flags().Int("train-timesteps", 0, "Training timesteps (0 uses the config value)")
	cmd.Flags().String("config", "", "Path to scheduler_config.json")
	return cmd
}

// ScheduleHandler - Berechnet den Plan und gibt ihn als Tabelle aus
func ScheduleHandler(cmd *cobra.Command, _ []string) error {
	steps, _ := cmd.Flags().GetInt("steps")
	shift, _ := cmd.Flags().GetFloat32("shift")
	train, _ := cmd.Flags().GetInt("train-timesteps")
	path, _ := cmd.Flags().GetString("config")

	if steps <= 0 {
		return fmt.Errorf("steps must be positive, got %d", steps)
	}
	if shift < 0 || train < 0 {
		return errors.New("shift and train-timesteps must not be negative")
	}

	cfg := zimage.DefaultSchedulerConfig()
	if path != "" {
		loaded, err := zimage.LoadSchedulerConfig(envconfig.ExpandHome(path))
		if err != nil {
			return err
		}
		cfg = *loaded
	}
	if shift != 0 {
		cfg.Shift = shift
	}
	if train != 0 {
		cfg.NumTrainTimesteps = train
	}

	sched := zimage.NewFlowMatchEulerScheduler(cfg, steps)
	logutil.FromContext(cmd.Context()).Debug("schedule", "steps", steps, "shift", cfg.Shift, "train_timesteps", cfg.NumTrainTimesteps)

	out := cmd.OutOrStdout()
	table := newTable(out, "STEP", "TIMESTEP", "SIGMA")
	for i, t := range sched.Timesteps {
		table.Append([]string{
			strconv.Itoa(i),
			strconv.FormatFloat(float64(t), 'f', 4, 32),
			strconv.FormatFloat(float64(sched.Sigmas[i]), 'f', 6, 32),
		})
	}
	table.Append([]string{"end", "-", strconv.FormatFloat(float64(sched.Sigmas[steps]), 'f', 6, 32)})
	table.Render()
	return nil
}
