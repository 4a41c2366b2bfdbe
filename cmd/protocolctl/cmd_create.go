package main

import (
	"alcyxob/health-protocols/internal/api/dto"
	"alcyxob/health-protocols/internal/domain"
	"alcyxob/health-protocols/internal/wizard"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// createFlags mirrors the wizard steps.
type createFlags struct {
	customer string

	template string
	custom   bool

	age, weight, height float64
	activityLevel       string
	goals               string
	conditions          []string
	medications         string

	name        string
	description string
	duration    int
	intensity   string
	tags        []string

	generate bool
	dryRun   bool
}

var createOpts createFlags

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Run the protocol wizard and create a protocol for a customer",
	Long: `Walks the protocol wizard step by step:
  1. client selection      --customer (ID or email)
  2. template selection    --template ID, or --custom for a blank protocol
  3. health information    --age --weight --height --activity --goals --condition --medications
  4. customization         --duration --intensity --name --description --tag
  5. generation            --generate asks the backend to write guidance text

The duration defaults to the template's length. With --dry-run the request
body is printed instead of submitted.`,
	RunE: runCreate,
}

func init() {
	f := createCmd.Flags()
	f.StringVar(&createOpts.customer, "customer", "", "Customer ID or email")
	f.StringVar(&createOpts.template, "template", "", "Template ID (see protocolctl templates)")
	f.BoolVar(&createOpts.custom, "custom", false, "Build a custom protocol without a template")
	f.Float64Var(&createOpts.age, "age", 0, "Customer age in years")
	f.Float64Var(&createOpts.weight, "weight", 0, "Customer weight in kg")
	f.Float64Var(&createOpts.height, "height", 0, "Customer height in cm")
	f.StringVar(&createOpts.activityLevel, "activity", "", "Activity level")
	f.StringVar(&createOpts.goals, "goals", "", "Health goals")
	f.StringSliceVar(&createOpts.conditions, "condition", nil, "Health condition (repeatable)")
	f.StringVar(&createOpts.medications, "medications", "", "Current medications")
	f.StringVar(&createOpts.name, "name", "", "Protocol name (default: template name and duration)")
	f.StringVar(&createOpts.description, "description", "", "Protocol description")
	f.IntVar(&createOpts.duration, "duration", 0, "Duration in days (default: template length)")
	f.StringVar(&createOpts.intensity, "intensity", "", "Intensity: low, moderate or high")
	f.StringSliceVar(&createOpts.tags, "tag", nil, "Tag (repeatable)")
	f.BoolVar(&createOpts.generate, "generate", false, "Generate guidance text on the server")
	f.BoolVar(&createOpts.dryRun, "dry-run", false, "Print the request body instead of submitting it")
	createCmd.MarkFlagsMutuallyExclusive("template", "custom")
	_ = createCmd.MarkFlagRequired("customer")
}

func runCreate(cmd *cobra.Command, args []string) error {
	tok, err := bearerToken()
	if err != nil {
		return err
	}
	c, err := newClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	w := wizard.New(c, tok, wizard.WithLogger(logger))
	created, body, err := runWizard(ctx, w, createOpts, cmd.Flags().Changed)
	w.Cancel()
	w.Wait()
	if err != nil {
		reportWizardError(cmd.ErrOrStderr(), err)
		return err
	}

	out := cmd.OutOrStdout()
	if created == nil {
		fmt.Fprintln(out, string(body))
		return nil
	}
	fmt.Fprintln(out, successStyle.Render("Protocol created"))
	fmt.Fprintf(out, "  id:       %s\n  name:     %s\n  duration: %d days\n",
		created.Protocol.ID, created.Protocol.Name, created.Protocol.DurationDays)
	if created.Assignment != nil {
		fmt.Fprintf(out, "  assigned: %s (%s)\n", created.Assignment.CustomerID, created.Assignment.Status)
	}
	if content := created.Protocol.Config.GeneratedContent; content != "" {
		printGuidance(out, content)
	}
	return nil
}

// runWizard feeds the flags through every wizard step. It returns the
// created protocol, or only the encoded body on a dry run. changed reports
// whether an optional flag was given.
func runWizard(ctx context.Context, w *wizard.Wizard, opts createFlags, changed func(name string) bool) (*dto.CreateProtocolResponse, []byte, error) {
	w.Open(ctx)

	// 1. client selection
	customers, err := w.Customers(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch customers: %w", err)
	}
	customerID, err := resolveCustomer(customers, opts.customer)
	if err != nil {
		return nil, nil, err
	}
	if err := w.SelectClient(customerID); err != nil {
		return nil, nil, err
	}
	if _, err := w.Next(); err != nil {
		return nil, nil, err
	}

	// 2. template selection
	var tmpl *domain.ProtocolTemplate
	if opts.custom {
		err = w.UseCustomTemplate()
	} else {
		if opts.template != "" {
			templates, err := w.Templates(ctx)
			if err != nil {
				return nil, nil, fmt.Errorf("fetch templates: %w", err)
			}
			if tmpl = findTemplate(templates, opts.template); tmpl == nil {
				return nil, nil, fmt.Errorf("unknown template %q (available: %s)", opts.template, templateIDs(templates))
			}
		}
		err = w.SelectTemplate(opts.template)
	}
	if err != nil {
		return nil, nil, err
	}
	if _, err := w.Next(); err != nil {
		return nil, nil, err
	}

	// 3. health information
	health := wizard.HealthInfo{
		ActivityLevel: opts.activityLevel,
		HealthGoals:   opts.goals,
		Conditions:    opts.conditions,
		Medications:   opts.medications,
	}
	if changed("age") {
		health.Age = &opts.age
	}
	if changed("weight") {
		health.Weight = &opts.weight
	}
	if changed("height") {
		health.Height = &opts.height
	}
	if err := w.SetHealthInfo(health); err != nil {
		return nil, nil, err
	}
	session, err := w.Next()
	if err != nil {
		return nil, nil, err
	}

	// 4. customization; the wizard pre-fills the template duration
	duration := session.Custom.DurationDays
	if changed("duration") {
		duration = opts.duration
	}
	if err := w.SetCustomization(wizard.Customization{
		Name:         opts.name,
		Description:  opts.description,
		DurationDays: duration,
		Intensity:    opts.intensity,
		Tags:         opts.tags,
	}); err != nil {
		return nil, nil, err
	}
	if _, err := w.Next(); err != nil {
		return nil, nil, err
	}

	// 5. generation
	if err := w.SetGenerate(opts.generate); err != nil {
		return nil, nil, err
	}
	if opts.dryRun {
		session, err := w.Snapshot()
		if err != nil {
			return nil, nil, err
		}
		body, err := wizard.Encode(session, tmpl)
		return nil, body, err
	}
	created, err := w.Submit(ctx)
	return created, nil, err
}

// resolveCustomer accepts a customer ID or email.
func resolveCustomer(customers []dto.UserResponse, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	for _, cu := range customers {
		if cu.ID == ref || strings.EqualFold(cu.Email, ref) {
			return cu.ID, nil
		}
	}
	return "", fmt.Errorf("customer %q is not linked to you (see protocolctl customers)", ref)
}

func findTemplate(templates []domain.ProtocolTemplate, id string) *domain.ProtocolTemplate {
	for i := range templates {
		if templates[i].ID == id {
			return &templates[i]
		}
	}
	return nil
}

func templateIDs(templates []domain.ProtocolTemplate) string {
	ids := make([]string, len(templates))
	for i, t := range templates {
		ids[i] = t.ID
	}
	sort.Strings(ids)
	return strings.Join(ids, ", ")
}

func reportWizardError(out io.Writer, err error) {
	var (
		vErr     *wizard.ValidationError
		tooLarge *wizard.PayloadTooLargeError
		authErr  *wizard.AuthError
	)
	switch {
	case errors.As(err, &vErr):
		fmt.Fprintln(out, errorStyle.Render("Step "+vErr.Step.String()+" is incomplete:"))
		fields := make([]string, 0, len(vErr.Fields))
		for f := range vErr.Fields {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		for _, f := range fields {
			fmt.Fprintf(out, "  - %s\n", vErr.Fields[f])
		}
	case errors.As(err, &tooLarge):
		msg := fmt.Sprintf("Request too large: %d bytes", tooLarge.Size)
		if tooLarge.Limit > 0 {
			msg += fmt.Sprintf(" (server accepts %d)", tooLarge.Limit)
		}
		fmt.Fprintln(out, errorStyle.Render(msg))
	case errors.As(err, &authErr):
		fmt.Fprintln(out, errorStyle.Render("Authentication required: run protocolctl login"))
	case wizard.Retryable(err):
		fmt.Fprintln(out, errorStyle.Render("Temporary failure, try again: ")+err.Error())
	}
}

func printGuidance(out io.Writer, content string) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, titleStyle.Render("Guidance"))
	rendered, err := renderMarkdown(content)
	if err != nil {
		logger.Debug("Falling back to plain guidance output", zap.Error(err))
		fmt.Fprintln(out, content)
		return
	}
	fmt.Fprint(out, rendered)
}

func renderMarkdown(content string) (string, error) {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(80))
	if err != nil {
		return "", err
	}
	return r.Render(content)
}
