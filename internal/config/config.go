package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type SerialConfig struct {
	SensorPort   string
	ActuatorPort string
	BaudRate     int
	SettleDelay  time.Duration
}

type MQTTConfig struct {
	Enabled     bool
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
}

type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type ScheduleConfig struct {
	Timezone    string
	SummaryTime string
}

type SlackConfig struct {
	BotToken      string
	ChannelID     string
	SigningSecret string
}

type ServerConfig struct {
	Addr string
}

// SwitchConfig holds the master switch of each automation category.
type SwitchConfig struct {
	Water   bool
	LED     bool
	Fan     bool
	Curtain bool
}

type WateringConfig struct {
	SoilTriggerPct float64
	SoilSafePct    float64
	VPDHighTrigger float64
	VPDLowSafe     float64
	Duration       time.Duration
	Cooldown       time.Duration
	DripFlowRateLH float64
	DripCount      int
	NightStartHour int
	NightEndHour   int
}

type LightingConfig struct {
	OnHour             int
	OffHour            int
	TargetDLIMin       float64
	TargetDLIMax       float64
	LuxToPPFD          float64
	MinLux             float64
	WhiteDeficitRatio  float64
	PurpleDeficitRatio float64
	PurpleBoost        bool
	FadeDuration       time.Duration
	OverrideDuration   time.Duration
}

type VentilationConfig struct {
	TempHighLimit    float64
	TempCriticalHigh float64
	HumHighLimit     float64
	VPDFanOn         float64
	VPDFanOff        float64
}

type CurtainConfig struct {
	VPDOpen            float64
	VPDClose           float64
	InitialState       string
	OpenDirection      string
	StepsPerRevolution int
	Revolutions        float64
}

// Steps returns the step count of a full open or close travel.
func (c CurtainConfig) Steps() int {
	return int(float64(c.StepsPerRevolution) * c.Revolutions)
}

type AutomationConfig struct {
	TickInterval    time.Duration
	DLIStorePath    string
	DLISaveInterval time.Duration
	Switches        SwitchConfig
	Watering        WateringConfig
	Lighting        LightingConfig
	Ventilation     VentilationConfig
	Curtain         CurtainConfig
}

type AlertConfig struct {
	Interval        time.Duration
	ActiveStartHour int
	ActiveEndHour   int
}

type Config struct {
	Serial     SerialConfig
	MQTT       MQTTConfig
	Database   DatabaseConfig
	Schedule   ScheduleConfig
	Slack      SlackConfig
	Server     ServerConfig
	Automation AutomationConfig
	Alert      AlertConfig
	ConfigPath string
}

// setting couples a viper key with its environment variable and default.
type setting struct {
	key    string
	env    string
	preset any
}

var settings = []setting{
	{"serial.sensorport", "SERIAL_SENSOR_PORT", "/dev/ttyBoardA"},
	{"serial.actuatorport", "SERIAL_ACTUATOR_PORT", "/dev/ttyBoardB"},
	{"serial.baudrate", "SERIAL_BAUD_RATE", 9600},
	{"serial.settledelay", "SERIAL_SETTLE_DELAY", 100 * time.Millisecond},

	{"mqtt.enabled", "MQTT_ENABLED", false},
	{"mqtt.broker", "MQTT_BROKER", "tcp://localhost:1883"},
	{"mqtt.clientid", "MQTT_CLIENT_ID", "smartfarm-controller"},
	{"mqtt.username", "MQTT_USERNAME", ""},
	{"mqtt.password", "MQTT_PASSWORD", ""},
	{"mqtt.topicprefix", "MQTT_TOPIC_PREFIX", "smartfarm"},

	{"database.enabled", "DB_ENABLED", false},
	{"database.host", "DB_HOST", "localhost"},
	{"database.port", "DB_PORT", 5432},
	{"database.user", "DB_USER", "smartfarm"},
	{"database.password", "DB_PASSWORD", ""},
	{"database.dbname", "DB_NAME", "smartfarm"},
	{"database.sslmode", "DB_SSLMODE", "disable"},

	{"schedule.timezone", "SCHEDULE_TIMEZONE", "Local"},
	{"schedule.summarytime", "SCHEDULE_SUMMARY_TIME", "21:00"},

	{"slack.bottoken", "SLACK_BOT_TOKEN", ""},
	{"slack.channelid", "SLACK_CHANNEL_ID", ""},
	{"slack.signingsecret", "SLACK_SIGNING_SECRET", ""},

	{"server.addr", "SERVER_ADDR", ":3005"},

	{"automation.tickinterval", "TICK_INTERVAL", time.Second},
	{"automation.dlistorepath", "DLI_STORE_PATH", "dli_state.json"},
	{"automation.dlisaveinterval", "DLI_SAVE_INTERVAL", 5 * time.Minute},

	{"automation.switches.water", "USE_AUTO_WATER", false},
	{"automation.switches.led", "USE_AUTO_LED", false},
	{"automation.switches.fan", "USE_AUTO_FAN", false},
	{"automation.switches.curtain", "USE_AUTO_CURTAIN", false},

	{"automation.watering.soiltriggerpct", "SOIL_TRIGGER_PCT", 30.0},
	{"automation.watering.soilsafepct", "SOIL_SAFE_PCT", 50.0},
	{"automation.watering.vpdhightrigger", "VPD_HIGH_TRIGGER", 1.5},
	{"automation.watering.vpdlowsafe", "VPD_LOW_SAFE", 0.8},
	{"automation.watering.duration", "WATERING_DURATION", 5 * time.Second},
	{"automation.watering.cooldown", "WATER_COOLDOWN", time.Hour},
	{"automation.watering.dripflowratelh", "DRIP_FLOW_RATE_LH", 2.0},
	{"automation.watering.dripcount", "DRIP_COUNT", 8},
	{"automation.watering.nightstarthour", "NIGHT_START_HOUR", 22},
	{"automation.watering.nightendhour", "NIGHT_END_HOUR", 6},

	{"automation.lighting.onhour", "LED_ON_HOUR", 8},
	{"automation.lighting.offhour", "LED_OFF_HOUR", 20},
	{"automation.lighting.targetdlimin", "TARGET_DLI_MIN", 12.0},
	{"automation.lighting.targetdlimax", "TARGET_DLI_MAX", 17.0},
	{"automation.lighting.luxtoppfd", "LUX_TO_PPFD", 0.0185},
	{"automation.lighting.minlux", "MIN_LUX_THRESHOLD", 500.0},
	{"automation.lighting.whitedeficitratio", "LED_WHITE_DEFICIT_RATIO", 1.0},
	{"automation.lighting.purpledeficitratio", "LED_PURPLE_DEFICIT_RATIO", 0.5},
	{"automation.lighting.purpleboost", "LED_PURPLE_BOOST", true},
	{"automation.lighting.fadeduration", "LED_FADE_DURATION", 10 * time.Minute},
	{"automation.lighting.overrideduration", "LED_OVERRIDE_DURATION", 30 * time.Minute},

	{"automation.ventilation.temphighlimit", "TEMP_HIGH_LIMIT", 32.0},
	{"automation.ventilation.tempcriticalhigh", "TEMP_CRITICAL_HIGH", 40.0},
	{"automation.ventilation.humhighlimit", "HUM_HIGH_LIMIT", 80.0},
	{"automation.ventilation.vpdfanon", "VPD_FAN_ON", 1.8},
	{"automation.ventilation.vpdfanoff", "VPD_FAN_OFF", 1.2},

	{"automation.curtain.vpdopen", "VPD_CURTAIN_OPEN", 0.6},
	{"automation.curtain.vpdclose", "VPD_CURTAIN_CLOSE", 1.5},
	{"automation.curtain.initialstate", "CURTAIN_INITIAL_STATE", "CLOSED"},
	{"automation.curtain.opendirection", "CURTAIN_OPEN_DIRECTION", "CCW"},
	{"automation.curtain.stepsperrevolution", "CURTAIN_STEPS_PER_REVOLUTION", 2048},
	{"automation.curtain.revolutions", "CURTAIN_REVOLUTIONS", 1.0},

	{"alert.interval", "ALERT_INTERVAL", time.Minute},
	{"alert.activestarthour", "ALERT_ACTIVE_START_HOUR", 6},
	{"alert.activeendhour", "ALERT_ACTIVE_END_HOUR", 20},

	{"configpath", "CONFIG_PATH", ""},
}

func LoadConfig() (*Config, error) {
	log.Println("--- Starting Configuration Loading ---")

	env := os.Getenv("APP_ENV")
	if env == "" {
		log.Println("[1] APP_ENV not set, defaulting to 'local'.")
		env = "local"
	} else {
		log.Printf("[1] APP_ENV is set to '%s'.", env)
	}

	if env == "local" {
		if err := godotenv.Load(".env.local"); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("error reading config file .env.local: %w", err)
			}
			log.Println("[2] .env.local not found, which is acceptable. Relying on environment variables.")
		} else {
			log.Println("[2] Loaded environment from .env.local")
		}
	} else {
		log.Printf("[2] Skipping .env file loading because APP_ENV is '%s'.", env)
	}

	v := viper.New()
	for _, s := range settings {
		v.SetDefault(s.key, s.preset)
		if err := v.BindEnv(s.key, s.env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", s.env, err)
		}
	}
	log.Println("[3] Defaults and environment variable binding configured.")

	if path := v.GetString("configpath"); path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
		log.Printf("[4] Merged configuration from %s", v.ConfigFileUsed())
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	log.Println("[5] Configuration validated.")
	return &config, nil
}

// DefaultConfig returns the built-in defaults without consulting the
// environment or any config file.
func DefaultConfig() *Config {
	v := viper.New()
	for _, s := range settings {
		v.SetDefault(s.key, s.preset)
	}
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		log.Fatalf("Failed to unmarshal default configuration: %v", err)
	}
	return &config
}

// Validate rejects thresholds the controller cannot run with safely.
func (cfg *Config) Validate() error {
	var errs []string
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Sprintf(format, args...))
		}
	}
	pct := func(name string, v float64) {
		check(v >= 0 && v <= 100, "%s must be between 0 and 100 (got %v)", name, v)
	}
	hour := func(name string, v int) {
		check(v >= 0 && v < 24, "%s must be between 0 and 23 (got %d)", name, v)
	}

	check(cfg.Serial.SensorPort != "", "serial sensor port is not set")
	check(cfg.Serial.ActuatorPort != "", "serial actuator port is not set")
	check(cfg.Serial.BaudRate > 0, "baud rate must be positive (got %d)", cfg.Serial.BaudRate)
	check(cfg.Serial.SettleDelay >= 0, "settle delay must not be negative (got %v)", cfg.Serial.SettleDelay)

	a := cfg.Automation
	check(a.TickInterval > 0, "tick interval must be positive (got %v)", a.TickInterval)
	check(a.DLISaveInterval > 0, "DLI save interval must be positive (got %v)", a.DLISaveInterval)

	w := a.Watering
	pct("SOIL_TRIGGER_PCT", w.SoilTriggerPct)
	pct("SOIL_SAFE_PCT", w.SoilSafePct)
	check(w.SoilTriggerPct < w.SoilSafePct, "SOIL_TRIGGER_PCT (%v) must be below SOIL_SAFE_PCT (%v)", w.SoilTriggerPct, w.SoilSafePct)
	check(w.VPDLowSafe < w.VPDHighTrigger, "VPD_LOW_SAFE (%v) must be below VPD_HIGH_TRIGGER (%v)", w.VPDLowSafe, w.VPDHighTrigger)
	check(w.Duration > 0, "WATERING_DURATION must be positive (got %v)", w.Duration)
	check(w.Cooldown >= 0, "WATER_COOLDOWN must not be negative (got %v)", w.Cooldown)
	check(w.DripFlowRateLH >= 0, "DRIP_FLOW_RATE_LH must not be negative (got %v)", w.DripFlowRateLH)
	check(w.DripCount >= 0, "DRIP_COUNT must not be negative (got %d)", w.DripCount)
	hour("NIGHT_START_HOUR", w.NightStartHour)
	hour("NIGHT_END_HOUR", w.NightEndHour)

	l := a.Lighting
	hour("LED_ON_HOUR", l.OnHour)
	hour("LED_OFF_HOUR", l.OffHour)
	check(l.OnHour != l.OffHour, "LED_ON_HOUR and LED_OFF_HOUR must differ")
	check(l.TargetDLIMin > 0, "TARGET_DLI_MIN must be positive (got %v)", l.TargetDLIMin)
	check(l.TargetDLIMax >= l.TargetDLIMin, "TARGET_DLI_MAX (%v) must not be below TARGET_DLI_MIN (%v)", l.TargetDLIMax, l.TargetDLIMin)
	check(l.LuxToPPFD > 0, "LUX_TO_PPFD must be positive (got %v)", l.LuxToPPFD)
	check(l.MinLux >= 0, "MIN_LUX_THRESHOLD must not be negative (got %v)", l.MinLux)
	check(l.PurpleDeficitRatio <= l.WhiteDeficitRatio, "LED_PURPLE_DEFICIT_RATIO must not exceed LED_WHITE_DEFICIT_RATIO")
	check(l.FadeDuration >= 0, "LED_FADE_DURATION must not be negative (got %v)", l.FadeDuration)
	check(l.OverrideDuration >= 0, "LED_OVERRIDE_DURATION must not be negative (got %v)", l.OverrideDuration)

	v := a.Ventilation
	check(v.TempHighLimit >= -50 && v.TempHighLimit <= 100, "TEMP_HIGH_LIMIT must be between -50 and 100 (got %v)", v.TempHighLimit)
	check(v.TempCriticalHigh >= v.TempHighLimit, "TEMP_CRITICAL_HIGH (%v) must not be below TEMP_HIGH_LIMIT (%v)", v.TempCriticalHigh, v.TempHighLimit)
	pct("HUM_HIGH_LIMIT", v.HumHighLimit)
	check(v.VPDFanOff < v.VPDFanOn, "VPD_FAN_OFF (%v) must be below VPD_FAN_ON (%v)", v.VPDFanOff, v.VPDFanOn)

	c := a.Curtain
	check(c.VPDOpen < c.VPDClose, "VPD_CURTAIN_OPEN (%v) must be below VPD_CURTAIN_CLOSE (%v)", c.VPDOpen, c.VPDClose)
	dir := strings.ToUpper(c.OpenDirection)
	check(dir == "CW" || dir == "CCW", "CURTAIN_OPEN_DIRECTION must be CW or CCW (got %q)", c.OpenDirection)
	state := strings.ToUpper(c.InitialState)
	check(state == "OPEN" || state == "CLOSED", "CURTAIN_INITIAL_STATE must be OPEN or CLOSED (got %q)", c.InitialState)
	check(c.StepsPerRevolution > 0, "CURTAIN_STEPS_PER_REVOLUTION must be positive (got %d)", c.StepsPerRevolution)
	check(c.Revolutions > 0, "CURTAIN_REVOLUTIONS must be positive (got %v)", c.Revolutions)

	al := cfg.Alert
	check(al.Interval > 0, "alert interval must be positive (got %v)", al.Interval)
	hour("ALERT_ACTIVE_START_HOUR", al.ActiveStartHour)
	hour("ALERT_ACTIVE_END_HOUR", al.ActiveEndHour)
	check(al.ActiveStartHour < al.ActiveEndHour, "alert active window must start before it ends")

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return nil
}

// DSN returns the PostgreSQL connection string
func (cfg *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
		cfg.Database.Host,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.DBName,
		cfg.Database.Port,
		cfg.Database.SSLMode,
	)
}
