package web_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/ardanlabs/powledger/foundation/web"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_App(t *testing.T) {
	t.Log("Given the need to route requests through the app.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen handlers use params and middleware.", testID)
		{
			shutdown := make(chan os.Signal, 1)

			var order []string
			mw := func(name string) web.Middleware {
				return func(handler web.Handler) web.Handler {
					return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
						order = append(order, name)
						return handler(ctx, w, r)
					}
				}
			}

			app := web.NewApp(shutdown, mw("first"), mw("second"))

			app.Handle(http.MethodGet, "", "/echo/:word", func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
				v, err := web.GetValues(ctx)
				if err != nil || v.TraceID == "" {
					return web.NewShutdownError("missing values")
				}
				return web.RespondText(ctx, w, web.Param(r, "word"), http.StatusOK)
			}, mw("route"))

			app.Handle(http.MethodGet, "", "/fail", func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
				return web.NewShutdownError("integrity")
			})

			r := httptest.NewRequest(http.MethodGet, "/echo/hello", nil)
			w := httptest.NewRecorder()
			app.ServeHTTP(w, r)

			if w.Code != http.StatusOK || w.Body.String() != "hello" {
				t.Fatalf("\t%s\tTest %d:\tShould echo the param, got %d %q.", failed, testID, w.Code, w.Body.String())
			}
			t.Logf("\t%s\tTest %d:\tShould echo the param.", success, testID)

			if len(order) != 3 || order[0] != "first" || order[1] != "second" || order[2] != "route" {
				t.Fatalf("\t%s\tTest %d:\tShould run the app middleware before the route middleware: %v", failed, testID, order)
			}
			t.Logf("\t%s\tTest %d:\tShould run the app middleware before the route middleware.", success, testID)

			r = httptest.NewRequest(http.MethodGet, "/fail", nil)
			app.ServeHTTP(httptest.NewRecorder(), r)

			select {
			case <-shutdown:
				t.Logf("\t%s\tTest %d:\tShould signal a shutdown on an integrity error.", success, testID)
			case <-time.After(time.Second):
				t.Fatalf("\t%s\tTest %d:\tShould signal a shutdown on an integrity error.", failed, testID)
			}
		}
	}
}
