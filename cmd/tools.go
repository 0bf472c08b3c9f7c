package cmd

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/iksnae/cre-chat/internal"
	"github.com/spf13/cobra"
)

var (
	toolsChat       string
	toolsShowPrompt bool
	toolsRaw        bool

	scriptForm    internal.CallScriptForm
	objectionForm internal.ObjectionForm
	uvpForm       internal.UVPForm
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Generate call scripts, objection responses and value propositions",
	Long: `Fill in one of the generator forms and have the assistant write the
result. The prompt and reply are saved as an exchange of a new conversation,
or of the one named by --chat.`,
}

var toolsScriptCmd = &cobra.Command{
	Use:   "script",
	Short: "Generate a call script",
	Example: `  cre-chat tools script --type cold_call --property-type Retail \
    --audience Investor --market Austin --goal schedule_meeting`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runToolForm(cmd, &scriptForm)
	},
}

var toolsObjectionCmd = &cobra.Command{
	Use:     "objection",
	Short:   "Generate a response to a sales objection",
	Example: `  cre-chat tools objection --type price_too_high --property-type Office --market Denver`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runToolForm(cmd, &objectionForm)
	},
}

var toolsUVPCmd = &cobra.Command{
	Use:     "uvp",
	Short:   "Create a unique value proposition",
	Example: `  cre-chat tools uvp --property-type Industrial --market Phoenix --audience Tenant`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runToolForm(cmd, &uvpForm)
	},
}

func runToolForm(cmd *cobra.Command, form internal.ToolForm) error {
	if err := form.Validate(); err != nil {
		return err
	}

	store, err := openSessionStore()
	if err != nil {
		return err
	}
	defer closeStore(store)

	// the reply is held back until the spinner has finished
	var reply bytes.Buffer
	renderer := internal.NewMarkdownRenderer(cmd.OutOrStdout(), internal.DefaultWrapWidth, toolsRaw)
	observer := newTerminalObserver(&reply, cmd.ErrOrStderr(), renderer)
	observer.echoUser = toolsShowPrompt

	client := newClient()
	ctrl := newController(client, store, "", observer)
	defer flushController(ctrl)
	if toolsChat != "" {
		if err := ctrl.SelectChat(toolsChat); err != nil {
			return fmt.Errorf("failed to open %s: %w", toolsChat, err)
		}
	}

	err = internal.ShowProgress(cmd.Context(), cmd.ErrOrStderr(), fmt.Sprintf("Generating %s", form.Name()), func() error {
		_, err := ctrl.RunTool(cmd.Context(), client, form)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to generate %s: %w", form.Name(), err)
	}
	if _, err := reply.WriteTo(cmd.OutOrStdout()); err != nil {
		return err
	}
	internal.LogInfo("saved as %s", ctrl.ChatID())
	return nil
}

func init() {
	rootCmd.AddCommand(toolsCmd)
	toolsCmd.AddCommand(toolsScriptCmd, toolsObjectionCmd, toolsUVPCmd)
	toolsCmd.PersistentFlags().StringVar(&toolsChat, "chat", "", "Append the exchange to a saved conversation")
	toolsCmd.PersistentFlags().BoolVar(&toolsShowPrompt, "show-prompt", false, "Print the generated prompt before the reply")
	toolsCmd.PersistentFlags().BoolVar(&toolsRaw, "raw", false, "Print the reply without Markdown rendering")

	f := toolsScriptCmd.Flags()
	f.StringVar(&scriptForm.ScriptType, "type", "", "Script type ("+strings.Join(internal.ScriptTypes, ", ")+")")
	f.StringVar(&scriptForm.PropertyType, "property-type", "", "Property type, e.g. Retail, Office, Industrial")
	f.StringVar(&scriptForm.TargetAudience, "audience", "", "Target audience, e.g. Investor, Tenant")
	f.StringVar(&scriptForm.Market, "market", "", "Market, e.g. Austin")
	f.StringVar(&scriptForm.Goal, "goal", "", "Call goal, e.g. schedule_meeting, qualify_lead")
	f.StringVar(&scriptForm.PropertyDetails, "details", "", "Property details")
	f.StringVar(&scriptForm.KeySellingPoints, "selling-points", "", "Key selling points")

	f = toolsObjectionCmd.Flags()
	f.StringVar(&objectionForm.ObjectionType, "type", "", "Objection, e.g. price_too_high, location_concerns")
	f.StringVar(&objectionForm.PropertyType, "property-type", "", "Property type")
	f.StringVar(&objectionForm.Market, "market", "", "Market")
	f.StringVar(&objectionForm.Context, "context", "", "Context of the conversation")
	f.StringVar(&objectionForm.PropertyDetails, "details", "", "Property details")

	f = toolsUVPCmd.Flags()
	f.StringVar(&uvpForm.PropertyType, "property-type", "", "Property type")
	f.StringVar(&uvpForm.Market, "market", "", "Market")
	f.StringVar(&uvpForm.TargetAudience, "audience", "", "Target audience")
	f.StringVar(&uvpForm.PropertyFeatures, "features", "", "Property features")
	f.StringVar(&uvpForm.CompetitiveAdvantages, "advantages", "", "Competitive advantages")
	f.StringVar(&uvpForm.MarketTrends, "trends", "", "Market trends")
}
