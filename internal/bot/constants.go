package bot

const (
	btnAgree    = "✅ I agree"
	btnConfirm  = "✅ Confirm quote"
	btnBack     = "⬅️ Back"
	btnRestart  = "🔁 Start again"
	btnContinue = "Continue ➡️"
	btnTypeIt   = "Type phone or email"
	btnShareTel = "📱 Share my phone number"
)

// Callback data prefixes. Payloads are "<prefix>:<value>".
const (
	cbProduct  = "product"
	cbArea     = "area"
	cbAreas    = "areas"
	cbSize     = "size"
	cbLeaflet  = "leaflet"
	cbDuration = "months"
	cbMonth    = "month"
	cbSchedule = "schedule"
	cbStatus   = "status"

	cbDone = "done"
)

const maxVoucherCodes = 3
