package tutor

import (
	"github.com/trezcool/dos/core"
)

// Persona is a tutor the student designed. Students pick one per enrolment.
// Empty fields fall back to the configured defaults.
type Persona struct {
	ID                int64  `json:"id"`
	StudentID         string `json:"-"`
	Name              string `json:"name"`
	PersonalityPrompt string `json:"personalityPrompt"`
	VoiceModel        string `json:"voiceModel"`
	TTSSpeed          string `json:"ttsSpeed"`
}

type PersonaData struct {
	Name              string `json:"name" validate:"required,max=80"`
	PersonalityPrompt string `json:"personalityPrompt" validate:"max=2000"`
	VoiceModel        string `json:"voiceModel" validate:"max=80"`
	TTSSpeed          string `json:"ttsSpeed" validate:"max=8"`
}

func (pd *PersonaData) Clean() {
	pd.Name = core.CleanString(pd.Name)
	pd.PersonalityPrompt = core.CleanString(pd.PersonalityPrompt)
	pd.VoiceModel = core.CleanString(pd.VoiceModel)
	pd.TTSSpeed = core.CleanString(pd.TTSSpeed)
}

// Config is one of the student's enrolments with the persona picked for it, if any.
type Config struct {
	EnrolmentID int64  `json:"enrolmentId"`
	SubjectName string `json:"subjectName"`
	BoardName   string `json:"boardName"`
	PersonaID   *int64 `json:"personaId"`
	PersonaName string `json:"personaName"`
}

type ConfigUpdate struct {
	EnrolmentID int64  `json:"enrolmentId" validate:"required,gt=0"`
	PersonaID   *int64 `json:"personaId"`
}

// Defaults returns the persona used when nothing is configured.
func Defaults(conf *core.Config) Persona {
	return Persona{
		Name:              conf.Tutor.Name,
		PersonalityPrompt: conf.Tutor.PersonalityPrompt,
		VoiceModel:        conf.Tutor.VoiceModel,
		TTSSpeed:          conf.Tutor.TTSSpeed,
	}
}

// Resolve fills every empty field of `p` individually.
// The voice falls back to `ttsOverride` first, then to the default voice.
func (p Persona) Resolve(defaults Persona, ttsOverride string) Persona {
	p.Name = firstNonEmpty(p.Name, defaults.Name)
	p.PersonalityPrompt = firstNonEmpty(p.PersonalityPrompt, defaults.PersonalityPrompt)
	p.VoiceModel = firstNonEmpty(p.VoiceModel, ttsOverride, defaults.VoiceModel)
	p.TTSSpeed = firstNonEmpty(p.TTSSpeed, defaults.TTSSpeed)
	return p
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = core.CleanString(v); v != "" {
			return v
		}
	}
	return ""
}
