package internal

import (
	"context"
	"fmt"
	"strings"
)

// Script types accepted by the call script generator
var ScriptTypes = []string{"cold_call", "follow_up", "property_pitch", "objection_handling"}

// ToolForm is a form that turns its fields into a prompt for one of the
// backend's generator tools.
type ToolForm interface {
	// Name is the human label used in notices, e.g. "call script"
	Name() string
	Validate() error
	Prompt() string
}

// Completer sends a single non-streaming chat request
type Completer interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// CallScriptForm collects the inputs of the call script generator
type CallScriptForm struct {
	ScriptType       string
	PropertyType     string
	TargetAudience   string
	Market           string
	Goal             string
	PropertyDetails  string
	KeySellingPoints string
}

// Name returns the label used in progress and error messages
func (f *CallScriptForm) Name() string { return "call script" }

// Validate checks the required fields and that ScriptType is a known type
func (f *CallScriptForm) Validate() error {
	v := &ValidationError{Form: "call script"}
	v.require("script_type", f.ScriptType)
	v.require("property_type", f.PropertyType)
	v.require("target_audience", f.TargetAudience)
	v.require("market", f.Market)
	v.require("goal", f.Goal)
	if f.ScriptType != "" && !contains(ScriptTypes, f.ScriptType) {
		v.Invalid = append(v.Invalid, "script_type")
	}
	return v.orNil()
}

// Prompt builds the chat message asking for a call script
func (f *CallScriptForm) Prompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate a %s call script for a %s property in %s targeted at %s with the goal to %s.",
		f.ScriptType, f.PropertyType, f.Market, f.TargetAudience, strings.ReplaceAll(f.Goal, "_", " "))
	optionalLine(&b, "Property details", f.PropertyDetails)
	optionalLine(&b, "Key selling points", f.KeySellingPoints)
	b.WriteString("\n\nPlease use the call_script_generator tool with these parameters.")
	return b.String()
}

// ObjectionForm collects the inputs of the objection handler
type ObjectionForm struct {
	ObjectionType   string
	PropertyType    string
	Market          string
	Context         string
	PropertyDetails string
}

// Name returns the label used in progress and error messages
func (f *ObjectionForm) Name() string { return "objection response" }

// Validate checks the required fields
func (f *ObjectionForm) Validate() error {
	v := &ValidationError{Form: "objection handler"}
	v.require("objection_type", f.ObjectionType)
	v.require("property_type", f.PropertyType)
	v.require("market", f.Market)
	return v.orNil()
}

// Prompt builds the chat message asking for an objection response
func (f *ObjectionForm) Prompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Help me handle a %q objection for a %s property in %s.",
		f.ObjectionType, f.PropertyType, f.Market)
	optionalLine(&b, "Context", f.Context)
	optionalLine(&b, "Property details", f.PropertyDetails)
	b.WriteString("\n\nPlease use the objection_handler tool with these parameters.")
	return b.String()
}

// UVPForm collects the inputs of the unique value proposition creator
type UVPForm struct {
	PropertyType          string
	Market                string
	TargetAudience        string
	PropertyFeatures      string
	CompetitiveAdvantages string
	MarketTrends          string
}

// Name returns the label used in progress and error messages
func (f *UVPForm) Name() string { return "unique value proposition" }

// Validate checks the required fields
func (f *UVPForm) Validate() error {
	v := &ValidationError{Form: "uvp creator"}
	v.require("property_type", f.PropertyType)
	v.require("market", f.Market)
	v.require("target_audience", f.TargetAudience)
	return v.orNil()
}

// Prompt builds the chat message asking for a value proposition
func (f *UVPForm) Prompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create a unique value proposition for a %s property in %s targeted at %s.",
		f.PropertyType, f.Market, f.TargetAudience)
	optionalLine(&b, "Property features", f.PropertyFeatures)
	optionalLine(&b, "Competitive advantages", f.CompetitiveAdvantages)
	optionalLine(&b, "Market trends", f.MarketTrends)
	b.WriteString("\n\nPlease use the uvp_creator tool with these parameters.")
	return b.String()
}

// RunTool validates the form, sends its prompt on the session's thread and
// records the prompt and reply as one exchange of the session.
func (c *ChatController) RunTool(ctx context.Context, completer Completer, form ToolForm) (string, error) {
	if err := form.Validate(); err != nil {
		c.notify(Notice{Level: NoticeError, Text: "Please fill in all required fields"})
		return "", err
	}

	prompt := form.Prompt()
	resp, err := completer.Chat(ctx, ChatRequest{
		Message:  prompt,
		ThreadID: c.ThreadID(),
		Agent:    c.Agent(),
	})
	if err != nil {
		LogError("%s generation failed: %v", form.Name(), err)
		c.notify(Notice{Level: NoticeError, Text: fmt.Sprintf("Failed to generate %s. Please try again.", form.Name())})
		return "", err
	}

	reply := string(resp.Response)
	if err := c.AppendExchange(prompt, reply); err != nil {
		return reply, err
	}
	c.notify(Notice{Level: NoticeSuccess, Text: fmt.Sprintf("%s generated successfully", capitalize(form.Name()))})
	return reply, nil
}

func (v *ValidationError) require(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.Missing = append(v.Missing, field)
	}
}

func (v *ValidationError) orNil() error {
	if len(v.Missing) == 0 && len(v.Invalid) == 0 {
		return nil
	}
	return v
}

func optionalLine(b *strings.Builder, label, value string) {
	if value = strings.TrimSpace(value); value != "" {
		fmt.Fprintf(b, "\n%s: %s", label, value)
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
