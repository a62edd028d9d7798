package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Actuator command tokens understood by the actuator board.
const (
	CmdValveToggle     = "M1"
	CmdFanOn           = "FAN_ON"
	CmdFanOff          = "FAN_OFF"
	CmdLEDFadeOn       = "LED_FADE_ON"
	CmdLEDFadeOff      = "LED_FADE_OFF"
	CmdLEDOn           = "LED_ON"
	CmdLEDOff          = "LED_OFF"
	CmdPurpleFadeOn    = "PURPLE_FADE_ON"
	CmdPurpleFadeOff   = "PURPLE_FADE_OFF"
	CmdPurpleOn        = "PURPLE_ON"
	CmdPurpleOff       = "PURPLE_OFF"
	CmdCurtainOpen     = "CURTAIN_OPEN"
	CmdCurtainClose    = "CURTAIN_CLOSE"
	CmdEmergencyStop   = "EMERGENCY_STOP"
	CmdEmergencyResume = "EMERGENCY_RESUME"
)

type commandInfo struct {
	actuator Actuator
	result   ActuatorStatus
	steps    bool
}

var vocabulary = map[string]commandInfo{
	CmdValveToggle:     {actuator: ActuatorValve},
	CmdFanOn:           {ActuatorFan, StatusOn, false},
	CmdFanOff:          {ActuatorFan, StatusOff, false},
	CmdLEDFadeOn:       {ActuatorLEDWhite, StatusOn, false},
	CmdLEDFadeOff:      {ActuatorLEDWhite, StatusOff, false},
	CmdLEDOn:           {ActuatorLEDWhite, StatusOn, false},
	CmdLEDOff:          {ActuatorLEDWhite, StatusOff, false},
	CmdPurpleFadeOn:    {ActuatorLEDPurple, StatusOn, false},
	CmdPurpleFadeOff:   {ActuatorLEDPurple, StatusOff, false},
	CmdPurpleOn:        {ActuatorLEDPurple, StatusOn, false},
	CmdPurpleOff:       {ActuatorLEDPurple, StatusOff, false},
	CmdCurtainOpen:     {ActuatorCurtain, StatusOpen, true},
	CmdCurtainClose:    {ActuatorCurtain, StatusClosed, true},
	CmdEmergencyStop:   {actuator: ActuatorSystem},
	CmdEmergencyResume: {actuator: ActuatorSystem},
}

// Transition is the state change a caller expects a command to cause.
// Toggle commands carry no state of their own, so the expectation travels
// with the command and ends up in the gateway log.
type Transition struct {
	From ActuatorStatus
	To   ActuatorStatus
}

func (t *Transition) String() string {
	if t == nil {
		return ""
	}
	return fmt.Sprintf("%s->%s", t.From, t.To)
}

// Command is a single actuator instruction.
type Command struct {
	Name     string
	Steps    int
	HasSteps bool
	Expect   *Transition
}

// NewCommand builds a parameterless command.
func NewCommand(name string) Command {
	return Command{Name: name}
}

// NewStepCommand builds a command carrying a signed step count.
func NewStepCommand(name string, steps int) Command {
	return Command{Name: name, Steps: steps, HasSteps: true}
}

// ValveToggle builds the valve command together with its expected transition.
func ValveToggle(from, to ActuatorStatus) Command {
	return Command{Name: CmdValveToggle, Expect: &Transition{From: from, To: to}}
}

// Wire returns the token as written to the serial line, without terminator.
func (c Command) Wire() string {
	if c.HasSteps {
		return c.Name + ":" + strconv.Itoa(c.Steps)
	}
	return c.Name
}

func (c Command) String() string {
	if c.Expect != nil {
		return c.Wire() + " (" + c.Expect.String() + ")"
	}
	return c.Wire()
}

// Actuator returns the actuator addressed by the command.
func (c Command) Actuator() Actuator {
	return vocabulary[c.Name].actuator
}

// Result returns the absolute status the command drives its actuator to.
// Toggle and system commands report false.
func (c Command) Result() (ActuatorStatus, bool) {
	info, ok := vocabulary[c.Name]
	if !ok || info.result == "" {
		return "", false
	}
	return info.result, true
}

// ParseCommand validates a token such as "FAN_ON" or "CURTAIN_OPEN:-2048".
func ParseCommand(token string) (Command, error) {
	token = strings.ToUpper(strings.TrimSpace(token))
	name, param, hasParam := strings.Cut(token, ":")
	info, ok := vocabulary[name]
	if !ok {
		return Command{}, fmt.Errorf("unknown command %q", name)
	}
	if info.steps != hasParam {
		if info.steps {
			return Command{}, fmt.Errorf("command %s requires a step count", name)
		}
		return Command{}, fmt.Errorf("command %s takes no parameter", name)
	}
	if !hasParam {
		return NewCommand(name), nil
	}
	steps, err := strconv.Atoi(param)
	if err != nil {
		return Command{}, fmt.Errorf("invalid step count %q: %w", param, err)
	}
	return NewStepCommand(name, steps), nil
}
