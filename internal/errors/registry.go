package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category   Category
	Message    string
	Detail     string
	Suggestion string
	DocURL     string
}

const docBase = "https://vango.dev/docs/effects/errors/"

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Registration contract (E101-E119)
	// ============================================

	"E101": {
		Category:   CategoryUsage,
		Message:    "Effect slot index out of order",
		Detail:     "Effects must be recorded with consecutive slot indices starting at 0 on every render.",
		Suggestion: "Record effects unconditionally, in the same order, on every render",
		DocURL:     docBase + "E101",
	},
	"E102": {
		Category:   CategoryUsage,
		Message:    "Rendered more effects than during the previous render",
		Detail:     "The number of effect registrations must be identical on every render of an instance.",
		Suggestion: "Move conditional logic inside the effect callback instead of around the registration",
		DocURL:     docBase + "E102",
	},
	"E103": {
		Category:   CategoryUsage,
		Message:    "Rendered fewer effects than during the previous render",
		Detail:     "The number of effect registrations must be identical on every render of an instance.",
		Suggestion: "Avoid early returns before all effects are registered",
		DocURL:     docBase + "E103",
	},
	"E104": {
		Category:   CategoryUsage,
		Message:    "Dependency list changed size between renders",
		Detail:     "The dependency list of an effect must keep the same length on every render.",
		Suggestion: "Keep the dependency list a fixed-size list of values",
		DocURL:     docBase + "E104",
	},
	"E105": {
		Category: CategoryUsage,
		Message:  "Effect recorded outside render",
		Detail:   "RecordEffect may only be called between BeginRender and End for an instance.",
		DocURL:   docBase + "E105",
	},
	"E107": {
		Category: CategoryUsage,
		Message:  "Commit started while another commit is running",
		Detail:   "Commits are processed one at a time. An effect callback must not commit synchronously.",
		DocURL:   docBase + "E107",
	},
	"E108": {
		Category: CategoryUsage,
		Message:  "Render already in progress",
		Detail:   "BeginRender was called twice for the same instance without End.",
		DocURL:   docBase + "E108",
	},

	// ============================================
	// Lifecycle (E120-E139)
	// ============================================

	"E120": {
		Category: CategoryLifecycle,
		Message:  "Unknown component instance",
		Detail:   "The instance was never registered or has already been unmounted.",
		DocURL:   docBase + "E120",
	},
	"E121": {
		Category: CategoryLifecycle,
		Message:  "Runtime closed",
		Detail:   "The runtime has been closed and no longer accepts instances.",
		DocURL:   docBase + "E121",
	},

	// ============================================
	// Configuration (E140-E159)
	// ============================================

	"E140": {
		Category: CategoryConfig,
		Message:  "Invalid configuration",
		DocURL:   docBase + "E140",
	},
	"E141": {
		Category: CategoryConfig,
		Message:  "Configuration file could not be parsed",
		DocURL:   docBase + "E141",
	},
	"E142": {
		Category: CategoryConfig,
		Message:  "Invalid scenario",
		DocURL:   docBase + "E142",
	},
}

// Lookup returns the template registered for code.
func Lookup(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}

// Codes returns all registered error codes.
func Codes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	return codes
}
