package dashboard

import "strings"

// Strings is one language's UI text.
type Strings struct {
	Dir          string // "ltr" or "rtl"
	Title        string
	Intro        string
	Input        string
	Language     string
	Temperature  string
	Humidity     string
	Occupancy    string
	Hour         string
	Day          string
	Occupied     string
	Empty        string
	Submit       string
	Result       string
	History      string
	Chart        string
	ChartTitle   string
	APIError     string
	InvalidInput string
	NoHistory    string
	ColTime      string
	ColKWh       string
	Days         [7]string
}

var weekdays = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

var catalog = map[string]Strings{
	"en": {
		Dir:          "ltr",
		Title:        "🏢 Smart Energy Monitoring Dashboard",
		Intro:        "🔌 AI-Powered Prediction for Building Energy Usage",
		Input:        "📥 Input",
		Language:     "🌐 Language / اللغة",
		Temperature:  "Temperature (°C)",
		Humidity:     "Humidity (%)",
		Occupancy:    "Occupancy",
		Hour:         "Hour of Day",
		Day:          "Day of Week",
		Occupied:     "Occupied",
		Empty:        "Empty",
		Submit:       "🔮 Predict Energy Usage",
		Result:       "⚡ Predicted Energy Consumption",
		History:      "📜 Prediction History",
		Chart:        "📊 Energy Forecast Timeline",
		ChartTitle:   "Energy Forecast Over Time",
		APIError:     "❌ API Error",
		InvalidInput: "⚠️ Invalid input",
		NoHistory:    "No prediction history yet.",
		ColTime:      "Time",
		ColKWh:       "kWh",
		Days:         weekdays,
	},
	"ar": {
		Dir:          "rtl",
		Title:        "🏢 لوحة مراقبة الطاقة الذكية",
		Intro:        "🔌 التنبؤ الذكي باستهلاك الطاقة في المباني",
		Input:        "📥 الإدخال",
		Language:     "🌐 Language / اللغة",
		Temperature:  "درجة الحرارة (°م)",
		Humidity:     "الرطوبة (%)",
		Occupancy:    "الإشغال",
		Hour:         "الساعة",
		Day:          "اليوم",
		Occupied:     "مشغول",
		Empty:        "فارغ",
		Submit:       "🔮 توقع استهلاك الطاقة",
		Result:       "⚡ استهلاك الطاقة المتوقع",
		History:      "📜 سجل التنبؤات",
		Chart:        "📊 الرسم البياني للتنبؤ بالطاقة",
		ChartTitle:   "التنبؤ بالطاقة عبر الزمن",
		APIError:     "❌ خطأ في API",
		InvalidInput: "⚠️ إدخال غير صالح",
		NoHistory:    "لا يوجد سجل تنبؤات بعد.",
		ColTime:      "الوقت",
		ColKWh:       "كيلوواط ساعة",
		Days:         weekdays,
	},
}

// Languages lists supported codes in display order.
var Languages = []string{"en", "ar"}

// Lookup returns the normalized language code and its strings. Unknown codes fall back to en.
func Lookup(lang string) (string, Strings) {
	code := strings.ToLower(strings.TrimSpace(lang))
	if s, ok := catalog[code]; ok {
		return code, s
	}
	return "en", catalog["en"]
}
