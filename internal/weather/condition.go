package weather

// Condition is a coarse label for a WMO weather code.
type Condition string

const (
	ConditionUnknown Condition = "unknown"
	ConditionClear   Condition = "clear"
	ConditionCloudy  Condition = "cloudy"
	ConditionFog     Condition = "fog"
	ConditionDrizzle Condition = "drizzle"
	ConditionRain    Condition = "rain"
	ConditionSnow    Condition = "snow"
	ConditionStorm   Condition = "storm"
)

// Describe maps a WMO weather code as used by Open-Meteo to a Condition.
func Describe(code int) Condition {
	switch {
	case code == 0:
		return ConditionClear
	case code >= 1 && code <= 3:
		return ConditionCloudy
	case code == 45 || code == 48:
		return ConditionFog
	case code >= 51 && code <= 57:
		return ConditionDrizzle
	case (code >= 61 && code <= 67) || (code >= 80 && code <= 82):
		return ConditionRain
	case (code >= 71 && code <= 77) || code == 85 || code == 86:
		return ConditionSnow
	case code >= 95 && code <= 99:
		return ConditionStorm
	default:
		return ConditionUnknown
	}
}
