package acceptance

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/memorialqr/memorial-qr-api/controllers"
	"github.com/memorialqr/memorial-qr-api/models"
	"github.com/memorialqr/memorial-qr-api/tests/testutil"
	"github.com/stretchr/testify/suite"
)

const (
	familyID  = "auth0|family"
	visitorID = "auth0|visitor"
)

// MemorialAcceptanceTestSuite exercises the memorial pages over a real HTTP server
type MemorialAcceptanceTestSuite struct {
	suite.Suite
	server *httptest.Server
	svc    *testutil.Services
}

// SetupSuite runs once before all tests
func (suite *MemorialAcceptanceTestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
	testutil.MustSetTestEnvironment(suite.T())
}

// SetupTest starts a server over a fresh database
func (suite *MemorialAcceptanceTestSuite) SetupTest() {
	testutil.RequireTestEnvironment(suite.T())

	suite.svc = testutil.NewServices(suite.T())
	router := gin.New()
	controllers.RegisterRoutes(router.Group("/api/v1"), &controllers.Dependencies{
		Catalog:   suite.svc.Catalog,
		Orders:    suite.svc.Orders,
		Checkout:  suite.svc.Checkout,
		SquarePay: suite.svc.SquarePay,
		Webhooks:  suite.svc.Webhooks,
		Memorials: suite.svc.Memorials,
		Content:   suite.svc.Content,
		Referrals: suite.svc.Referrals,
		Users:     suite.svc.Users,
	}, testutil.HeaderAuth())
	suite.server = httptest.NewServer(router)
}

// TearDownTest stops the server
func (suite *MemorialAcceptanceTestSuite) TearDownTest() {
	suite.server.Close()
}

// makeRequest sends a JSON request and decodes the envelope
func (suite *MemorialAcceptanceTestSuite) makeRequest(method, path string, body interface{}, userID string) (*http.Response, map[string]interface{}) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		suite.Require().NoError(err)
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, suite.server.URL+path, reader)
	suite.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+userID)
	}
	return suite.send(req)
}

func (suite *MemorialAcceptanceTestSuite) send(req *http.Request) (*http.Response, map[string]interface{}) {
	resp, err := http.DefaultClient.Do(req)
	suite.Require().NoError(err)
	defer resp.Body.Close()

	var result map[string]interface{}
	suite.Require().NoError(json.NewDecoder(resp.Body).Decode(&result))
	return resp, result
}

func (suite *MemorialAcceptanceTestSuite) uploadPhoto(path, filename string) (*http.Response, map[string]interface{}) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	suite.Require().NoError(err)
	_, err = part.Write([]byte("photo bytes"))
	suite.Require().NoError(err)
	suite.Require().NoError(writer.WriteField("uploaded_by", "Cousin Ann"))
	suite.Require().NoError(writer.Close())

	req, err := http.NewRequest(http.MethodPost, suite.server.URL+path, body)
	suite.Require().NoError(err)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return suite.send(req)
}

func data(result map[string]interface{}) map[string]interface{} {
	d, _ := result["data"].(map[string]interface{})
	return d
}

// TestFamilyBuildsMemorial_Acceptance creates a memorial, lets visitors contribute and has
// the family curate what is shown
func (suite *MemorialAcceptanceTestSuite) TestFamilyBuildsMemorial_Acceptance() {
	resp, result := suite.makeRequest(http.MethodPost, "/api/v1/memorials", map[string]interface{}{
		"first_name": "Mary",
		"last_name":  "Smith",
		"biography":  "Librarian, gardener and grandmother of nine.",
		"location":   "Portland, OR",
	}, familyID)
	suite.Require().Equal(http.StatusCreated, resp.StatusCode, result)
	slug := data(result)["slug"].(string)
	base := "/api/v1/memorials/" + slug

	resp, result = suite.uploadPhoto(base+"/photos", "garden.jpg")
	suite.Require().Equal(http.StatusCreated, resp.StatusCode, result)
	suite.Equal("Cousin Ann", data(result)["uploaded_by"])

	resp, result = suite.makeRequest(http.MethodPost, base+"/messages", map[string]interface{}{
		"author_name": "Former student",
		"content":     "You made me love reading.",
	}, "")
	suite.Require().Equal(http.StatusCreated, resp.StatusCode, result)

	resp, result = suite.makeRequest(http.MethodPost, base+"/stories", map[string]interface{}{
		"title":       "The tomato war",
		"content":     "Every August the whole street got tomatoes whether they wanted them or not.",
		"author_name": "Neighbor",
	}, "")
	suite.Require().Equal(http.StatusCreated, resp.StatusCode, result)
	storyID := data(result)["id"].(float64)

	resp, result = suite.makeRequest(http.MethodGet, base, nil, "")
	suite.Require().Equal(http.StatusOK, resp.StatusCode)
	page := data(result)
	suite.Len(page["photos"], 1)
	suite.Len(page["messages"], 1)
	suite.Empty(page["stories"], "stories wait for family approval")

	resp, _ = suite.makeRequest(http.MethodPatch, fmt.Sprintf("%s/stories/%.0f/approve", base, storyID), nil, visitorID)
	suite.Equal(http.StatusForbidden, resp.StatusCode)

	resp, result = suite.makeRequest(http.MethodPatch, fmt.Sprintf("%s/stories/%.0f/approve", base, storyID), nil, familyID)
	suite.Require().Equal(http.StatusOK, resp.StatusCode, result)

	resp, result = suite.makeRequest(http.MethodGet, base, nil, "")
	suite.Require().Equal(http.StatusOK, resp.StatusCode)
	suite.Len(data(result)["stories"], 1)

	resp, result = suite.makeRequest(http.MethodGet, "/api/v1/memorials", nil, familyID)
	suite.Require().Equal(http.StatusOK, resp.StatusCode)
	suite.Len(result["data"], 1)
}

// TestVisitorCannotManageMemorial_Acceptance checks every owner-only action refuses a
// visitor and leaves the memorial untouched
func (suite *MemorialAcceptanceTestSuite) TestVisitorCannotManageMemorial_Acceptance() {
	resp, result := suite.makeRequest(http.MethodPost, "/api/v1/memorials", map[string]interface{}{
		"first_name": "Mary",
		"last_name":  "Smith",
	}, familyID)
	suite.Require().Equal(http.StatusCreated, resp.StatusCode, result)
	base := "/api/v1/memorials/" + data(result)["slug"].(string)

	attempts := []struct {
		method string
		path   string
		body   interface{}
	}{
		{http.MethodPut, base, map[string]interface{}{"first_name": "Someone"}},
		{http.MethodDelete, base, nil},
		{http.MethodGet, base + "/dashboard", nil},
		{http.MethodPost, base + "/qrcode", nil},
		{http.MethodPost, base + "/claim", nil},
	}
	for _, attempt := range attempts {
		resp, result := suite.makeRequest(attempt.method, attempt.path, attempt.body, visitorID)
		suite.Contains([]int{http.StatusForbidden, http.StatusConflict}, resp.StatusCode, "%s %s", attempt.method, attempt.path)
		suite.Equal(false, result["success"])
	}

	var memorial models.Memorial
	suite.Require().NoError(suite.svc.DB.First(&memorial).Error)
	suite.Equal("Mary", memorial.FirstName)
	suite.Equal(familyID, *memorial.OwnerID)
}

// TestErrorResponseFormat_Acceptance checks the error envelope clients rely on
func (suite *MemorialAcceptanceTestSuite) TestErrorResponseFormat_Acceptance() {
	resp, result := suite.makeRequest(http.MethodGet, "/api/v1/memorials/nobody-here", nil, "")
	suite.Equal(http.StatusNotFound, resp.StatusCode)
	suite.Equal("application/json; charset=utf-8", resp.Header.Get("Content-Type"))
	suite.Equal(false, result["success"])

	errData, ok := result["error"].(map[string]interface{})
	suite.Require().True(ok)
	suite.Equal("MEMORIAL_NOT_FOUND", errData["code"])
	suite.NotEmpty(errData["message"])

	resp, result = suite.makeRequest(http.MethodPost, "/api/v1/memorials", map[string]interface{}{"first_name": "Mary"}, "")
	suite.Equal(http.StatusUnauthorized, resp.StatusCode)
	suite.Equal(false, result["success"])
}

func TestMemorialAcceptanceTestSuite(t *testing.T) {
	suite.Run(t, new(MemorialAcceptanceTestSuite))
}
