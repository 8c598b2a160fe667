package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func cronTestRouter(secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/queue/process", CronAuth(secret), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true})
	})
	return r
}

func TestCronAuth(t *testing.T) {
	testCases := []struct {
		name       string
		secret     string
		header     string
		query      string
		wantStatus int
	}{
		{
			name:       "valid header",
			secret:     "s3cret",
			header:     "s3cret",
			wantStatus: http.StatusOK,
		},
		{
			name:       "valid query param",
			secret:     "s3cret",
			query:      "s3cret",
			wantStatus: http.StatusOK,
		},
		{
			name:       "wrong secret",
			secret:     "s3cret",
			header:     "nope",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "missing secret",
			secret:     "s3cret",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "empty configured secret fails closed",
			secret:     "",
			header:     "",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "header wins over query",
			secret:     "s3cret",
			header:     "s3cret",
			query:      "wrong",
			wantStatus: http.StatusOK,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := cronTestRouter(tc.secret)

			url := "/queue/process"
			if tc.query != "" {
				url += "?secret=" + tc.query
			}
			req := httptest.NewRequest(http.MethodGet, url, nil)
			if tc.header != "" {
				req.Header.Set("X-Cron-Secret", tc.header)
			}

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tc.wantStatus)
			}
		})
	}
}
