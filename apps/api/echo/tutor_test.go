package echoapi_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/dos/core/tutor"
	"github.com/trezcool/dos/core/user"
)

func Test_tutorApi_personas(t *testing.T) {
	e := setup(t)
	student := e.studentToken(t)
	other := e.f.AddStudent("Charles Babbage", nil, nil)
	otherToken := e.token(t, other.ID, user.RoleStudent)

	list := func(t *testing.T, token string) []tutor.Persona {
		rec := e.do(http.MethodGet, "/tutor-personas", token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got struct {
			Personas []tutor.Persona `json:"personas"`
		}
		unmarshal(t, rec, &got)
		return got.Personas
	}

	var created tutor.Persona
	t.Run("create fills the defaults", func(t *testing.T) {
		rec := e.do(http.MethodPost, "/tutor-personas", student, []byte(`{"name": "  Ms Frizzle ", "ttsSpeed": "1.2"}`))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var got struct {
			Persona tutor.Persona `json:"persona"`
		}
		unmarshal(t, rec, &got)
		created = got.Persona

		assert.NotZero(t, created.ID)
		assert.Equal(t, "Ms Frizzle", created.Name)
		assert.Equal(t, "Be warm, concise, and Socratic.", created.PersonalityPrompt)
		assert.Equal(t, "aura-2-draco-en", created.VoiceModel)
		assert.Equal(t, "1.2", created.TTSSpeed)
	})

	t.Run("name required", func(t *testing.T) {
		rec := e.do(http.MethodPost, "/tutor-personas", student, []byte(`{"name": "   "}`))
		checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest, wantData: []byte(`{"name": "this field is required"}`)}, rec)
	})

	t.Run("listed by name, per student", func(t *testing.T) {
		rec := e.do(http.MethodPost, "/tutor-personas", student, []byte(`{"name": "Albert"}`))
		require.Equal(t, http.StatusCreated, rec.Code)

		got := list(t, student)
		require.Len(t, got, 2)
		assert.Equal(t, "Albert", got[0].Name)
		assert.Equal(t, "Ms Frizzle", got[1].Name)
		assert.Empty(t, list(t, otherToken))
	})

	updateTests := []httpTest{
		{name: "not a number", path: "/tutor-personas/abc", token: student, wantCode: http.StatusNotFound, body: []byte(`{"name": "X"}`)},
		{
			name: "another student's persona", token: otherToken, wantCode: http.StatusNotFound,
			body:     []byte(`{"name": "Stolen"}`),
			wantData: marchallObj(t, httpErr{Error: "persona not found"}),
		},
		{
			name: "rename", token: student, wantCode: http.StatusOK,
			body: []byte(`{"name": "Valerie", "personalityPrompt": "Be strict."}`),
		},
	}
	for _, tt := range updateTests {
		t.Run(tt.name, func(t *testing.T) {
			path := tt.path
			if path == "" {
				path = fmt.Sprintf("/tutor-personas/%d", created.ID)
			}
			rec := e.do(http.MethodPut, path, tt.token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("delete", func(t *testing.T) {
		path := fmt.Sprintf("/tutor-personas/%d", created.ID)

		rec := e.do(http.MethodDelete, path, otherToken)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, list(t, student), 2, "only the owner can delete")

		rec = e.do(http.MethodDelete, path, student)
		require.Equal(t, http.StatusOK, rec.Code)
		got := list(t, student)
		require.Len(t, got, 1)
		assert.Equal(t, "Albert", got[0].Name)
	})
}

func Test_tutorApi_config(t *testing.T) {
	e := setup(t)
	student := e.studentToken(t)
	other := e.f.AddStudent("Charles Babbage", nil, nil)
	otherPersona := e.f.DB.SetPersona(other.ID, 0, tutor.Persona{Name: "Not yours"})

	rec := e.do(http.MethodPost, "/tutor-personas", student, []byte(`{"name": "Ms Frizzle"}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		Persona tutor.Persona `json:"persona"`
	}
	unmarshal(t, rec, &created)

	list := func(t *testing.T) []tutor.Config {
		rec := e.do(http.MethodGet, "/tutor-config", student)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got struct {
			Enrolments []tutor.Config `json:"enrolments"`
		}
		unmarshal(t, rec, &got)
		return got.Enrolments
	}

	t.Run("unconfigured enrolments are listed", func(t *testing.T) {
		got := list(t)
		require.Len(t, got, 1)
		assert.Equal(t, e.f.Enrolment.ID, got[0].EnrolmentID)
		assert.Equal(t, "Mathematics", got[0].SubjectName)
		assert.Equal(t, "AQA", got[0].BoardName)
		assert.Nil(t, got[0].PersonaID)
	})

	tests := []httpTest{
		{
			name: "enrolment of another student", token: e.token(t, other.ID, user.RoleStudent), wantCode: http.StatusNotFound,
			body:     []byte(fmt.Sprintf(`{"enrolmentId": %d}`, e.f.Enrolment.ID)),
			wantData: marchallObj(t, httpErr{Error: "enrolment not found"}),
		},
		{
			name: "persona of another student", token: student, wantCode: http.StatusNotFound,
			body:     []byte(fmt.Sprintf(`{"enrolmentId": %d, "personaId": %d}`, e.f.Enrolment.ID, otherPersona.ID)),
			wantData: marchallObj(t, httpErr{Error: "persona not found"}),
		},
		{
			name: "pick a persona", token: student, wantCode: http.StatusOK,
			body: []byte(fmt.Sprintf(`{"enrolmentId": %d, "personaId": %d}`, e.f.Enrolment.ID, created.Persona.ID)),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(http.MethodPut, "/tutor-config", tt.token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("configured", func(t *testing.T) {
		got := list(t)
		require.Len(t, got, 1)
		require.NotNil(t, got[0].PersonaID)
		assert.Equal(t, created.Persona.ID, *got[0].PersonaID)
		assert.Equal(t, "Ms Frizzle", got[0].PersonaName)
	})

	t.Run("back to the defaults", func(t *testing.T) {
		rec := e.do(http.MethodPut, "/tutor-config", student, []byte(fmt.Sprintf(`{"enrolmentId": %d, "personaId": null}`, e.f.Enrolment.ID)))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Nil(t, list(t)[0].PersonaID)
	})
}
