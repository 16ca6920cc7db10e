package validator

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/classqa/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	Setup()
	m.Run()
}

func bindBody(body string, dst any) map[string]string {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	return Bind(c, dst)
}

func TestBindParticipant(t *testing.T) {
	var ok model.CreateParticipantRequest
	assert.Nil(t, bindBody(`{"name":"Ada","type":"professor"}`, &ok))

	var bad model.CreateParticipantRequest
	fields := bindBody(`{"name":"   ","type":"admin","email":"nope"}`, &bad)
	assert.Contains(t, fields, "name")
	assert.Contains(t, fields, "type")
	assert.Contains(t, fields, "email")
	assert.Equal(t, "name must not be blank", fields["name"])
}

func TestBindMalformedJSON(t *testing.T) {
	var req model.ArchiveSettings
	fields := bindBody(`{"autoArchiveAfterDays":`, &req)
	assert.Contains(t, fields, "detail")
}

func TestBindArchiveSettingsRange(t *testing.T) {
	var req model.ArchiveSettings
	fields := bindBody(`{"autoArchiveAfterDays":-1,"deleteArchivedAfterDays":30,"deleteClosedAfterDays":0}`, &req)
	assert.Contains(t, fields, "autoArchiveAfterDays")
}
