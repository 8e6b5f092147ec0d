package gemini

// Export internal helpers for testing.
var (
	BuildConfig  = buildConfig
	ConvertUsage = convertUsage
	ClassifyErr  = classifyErr
)
