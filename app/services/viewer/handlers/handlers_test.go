package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/ardanlabs/powledger/app/services/viewer/handlers"
	"go.uber.org/zap"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_Index(t *testing.T) {
	t.Log("Given the need to serve the viewer page.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen requesting the index.", testID)
		{
			app, err := handlers.UIMux(make(chan os.Signal, 1), zap.NewNop().Sugar(), "ws://localhost:8080/events")
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to build the mux: %v", failed, testID, err)
			}

			r := httptest.NewRequest(http.MethodGet, "/", nil)
			w := httptest.NewRecorder()
			app.ServeHTTP(w, r)

			if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "ws://localhost:8080/events") {
				t.Fatalf("\t%s\tTest %d:\tShould render the page bound to the node, got %d.", failed, testID, w.Code)
			}
			t.Logf("\t%s\tTest %d:\tShould render the page bound to the node.", success, testID)
		}
	}
}
