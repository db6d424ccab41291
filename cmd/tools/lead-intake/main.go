// cmd/tools/lead-intake/main.go
//
// lead-intake runs the intake flow from a terminal:
//
//	lead-intake extract [-file chat.txt] [-out draft.json]
//	lead-intake submit -file draft.json [-set phone=8112345678 ...] [-lead-id 42] [-reset]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"lead-intake-workers/internal/common/config"
	"lead-intake-workers/internal/common/llm"
	"lead-intake-workers/internal/common/logger"
	"lead-intake-workers/internal/common/odoo"
	"lead-intake-workers/internal/models"
	elf "lead-intake-workers/internal/workers/lead/extract-lead-fields"
	sl "lead-intake-workers/internal/workers/lead/score-lead"
)

// setFlags collects repeated -set key=value pairs.
type setFlags map[string]string

func (s setFlags) String() string {
	parts := make([]string, 0, len(s))
	for k, v := range s {
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, ",")
}

func (s setFlags) Set(value string) error {
	key, val, ok := strings.Cut(value, "=")
	if !ok || strings.TrimSpace(key) == "" {
		return fmt.Errorf("expected key=value, got %q", value)
	}
	s[strings.TrimSpace(key)] = val
	return nil
}

func main() {
	extractCmd := flag.NewFlagSet("extract", flag.ExitOnError)
	extractFile := extractCmd.String("file", "", "Transcript file (default: stdin)")
	extractOut := extractCmd.String("out", "", "Write the draft here instead of stdout")
	extractConfig := extractCmd.String("config", "", "Config file (default: configs/config.yaml)")

	submitCmd := flag.NewFlagSet("submit", flag.ExitOnError)
	submitFile := submitCmd.String("file", "", "Draft JSON produced by extract")
	submitLeadID := submitCmd.Int64("lead-id", 0, "Update this crm.lead instead of creating one")
	submitReset := submitCmd.Bool("reset", false, "Clear the draft file after a successful submit instead of marking it submitted")
	submitConfig := submitCmd.String("config", "", "Config file (default: configs/config.yaml)")
	edits := setFlags{}
	submitCmd.Var(edits, "set", "Edit a field before submitting, key=value (repeatable)")

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: lead-intake <extract|submit> [flags]")
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "extract":
		extractCmd.Parse(os.Args[2:])
		err = runExtract(*extractConfig, *extractFile, *extractOut)
	case "submit":
		submitCmd.Parse(os.Args[2:])
		if *submitFile == "" {
			fmt.Fprintln(os.Stderr, "submit: -file is required")
			os.Exit(2)
		}
		err = runSubmit(*submitConfig, *submitFile, edits, *submitLeadID, *submitReset)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// stderrLogger keeps stdout clean for the draft JSON.
func stderrLogger(cfg *config.Config) logger.Logger {
	return logger.NewZapAdapter(logger.NewWithOptions(logger.Options{
		Level:  cfg.Logging.Level,
		Format: "console",
		Output: "stderr",
	}))
}

func bandsFrom(cfg *config.Config) models.PriorityBands {
	if b := cfg.Scoring.PriorityBands; b.MediumMax > 0 {
		return models.PriorityBands{LowMax: b.LowMax, MediumMax: b.MediumMax}
	}
	return models.DefaultPriorityBands
}

func runExtract(configPath, file, out string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	log := stderrLogger(cfg)

	transcript, err := readTranscript(file, os.Stdin)
	if err != nil {
		return err
	}
	if strings.TrimSpace(transcript) == "" {
		return fmt.Errorf("transcript is empty")
	}

	completer, err := llm.NewFromConfig(cfg.LLM)
	if err != nil {
		return err
	}
	timeout := config.GetDuration(cfg.LLM.Timeout)

	ctx := context.Background()
	fields := elf.NewExtractor(completer, log, timeout).Extract(ctx, transcript)
	score := sl.NewScorer(completer, nil, log, timeout).Score(ctx, transcript)

	if fields == nil {
		log.Warn("extraction failed, draft starts empty", nil)
		fields = models.LeadFields{}
	}
	if score == nil {
		log.Warn("scoring failed, score defaults to 0", nil)
	}

	draft := models.NewLeadDraft(fields, score, bandsFrom(cfg))
	return writeDraft(draft, out, os.Stdout)
}

func runSubmit(configPath, file string, edits map[string]string, leadID int64, reset bool) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := config.ValidateOdoo(cfg.CRM.Odoo); err != nil {
		return err
	}
	log := stderrLogger(cfg)

	draft, err := readDraft(file)
	if err != nil {
		return err
	}
	if err := prepareDraft(draft, edits, bandsFrom(cfg), cfg.CRM.Odoo.DefaultStageID); err != nil {
		return err
	}

	crm, err := odoo.NewCRMClient(cfg.CRM.Odoo)
	if err != nil {
		return err
	}
	defer crm.Close()

	timeout := config.GetDuration(cfg.CRM.Odoo.Timeout)
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	result, err := submitDraft(ctx, crm, draft, leadID)
	if err != nil {
		return err
	}
	log.Info("lead submitted", map[string]interface{}{"crmLeadId": draft.CRMLeadID})

	if reset {
		draft.Reset()
	}
	if err := writeDraft(draft, file, nil); err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// leadWriter is the part of the Odoo client submit needs.
type leadWriter interface {
	CreateLeadFull(ctx context.Context, values map[string]interface{}) (int64, error)
	UpdateLead(ctx context.Context, id int64, values map[string]interface{}) (bool, error)
	LeadURL(id int64) string
}

// submitDraft writes the draft to Odoo and marks it submitted. A submitted
// draft is only written again as an update of an explicit lead.
func submitDraft(ctx context.Context, crm leadWriter, draft *models.LeadDraft, leadID int64) (map[string]interface{}, error) {
	if leadID == 0 && draft.Submitted {
		return nil, fmt.Errorf("draft was already submitted as lead %d; pass -lead-id %d to update it", draft.CRMLeadID, draft.CRMLeadID)
	}

	values := draft.CRMValues()
	result := map[string]interface{}{}
	if leadID > 0 {
		ok, err := crm.UpdateLead(ctx, leadID, values)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("odoo rejected the update of lead %d", leadID)
		}
		result["updated"] = true
	} else {
		id, err := crm.CreateLeadFull(ctx, values)
		if err != nil {
			return nil, err
		}
		leadID = id
		result["created"] = true
	}

	draft.MarkSubmitted(leadID)
	result["crmLeadId"] = leadID
	result["url"] = crm.LeadURL(leadID)
	result["priority"] = draft.Priority
	return result, nil
}

// prepareDraft re-derives the tier, applies edits and checks the draft is
// complete enough for Odoo.
func prepareDraft(draft *models.LeadDraft, edits map[string]string, bands models.PriorityBands, defaultStage int64) error {
	if draft.Fields == nil {
		draft.Fields = models.LeadFields{}
	}
	draft.SetBands(bands)
	if err := draft.ApplyEdits(edits); err != nil {
		return err
	}
	if draft.StageID == 0 {
		draft.StageID = defaultStage
	}
	if err := draft.Validate(); err != nil {
		return fmt.Errorf("%w (fix it with -set key=value)", err)
	}
	return nil
}

func readTranscript(file string, stdin io.Reader) (string, error) {
	if file == "" {
		b, err := io.ReadAll(stdin)
		return string(b), err
	}
	b, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("read transcript: %w", err)
	}
	return string(b), nil
}

func readDraft(file string) (*models.LeadDraft, error) {
	b, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read draft: %w", err)
	}
	var draft models.LeadDraft
	if err := json.Unmarshal(b, &draft); err != nil {
		return nil, fmt.Errorf("decode draft: %w", err)
	}
	return &draft, nil
}

// writeDraft writes to path, or to w when path is empty.
func writeDraft(draft *models.LeadDraft, path string, w io.Writer) error {
	b, err := json.MarshalIndent(draft, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	if path == "" {
		_, err = w.Write(b)
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
