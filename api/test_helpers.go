package api

import (
	"bytes"
	"fmt"
	"github.com/cpacia/bundlr/currency/mock"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"testing"
)

type apiTests []apiTest

type apiTest struct {
	name             string
	path             string
	method           string
	body             func(g *Gateway) ([]byte, error)
	setup            func(g *Gateway)
	statusCode       int
	expectedResponse func(g *Gateway) ([]byte, error)
}

func newTestGateway(t *testing.T) *Gateway {
	g, err := NewGateway(mock.NewNetwork(), &GatewayConfig{
		Version: "test",
		Gateway: "arweave.test",
	})
	if err != nil {
		t.Fatal(err)
	}
	return g
}

// runAPITests runs every test against a fresh gateway in order. State
// left by one test is visible to the next.
func runAPITests(t *testing.T, tests apiTests) {
	gateway := newTestGateway(t)

	ts := httptest.NewServer(gateway.Handler())
	defer ts.Close()

	for _, test := range tests {
		if test.setup != nil {
			test.setup(gateway)
		}
		var body []byte
		if test.body != nil {
			b, err := test.body(gateway)
			if err != nil {
				t.Fatal(err)
			}
			body = b
		}
		req, err := http.NewRequest(test.method, fmt.Sprintf("%s%s", ts.URL, test.path), bytes.NewReader(body))
		if err != nil {
			t.Fatal(err)
		}
		res, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		response, err := ioutil.ReadAll(res.Body)
		res.Body.Close()
		if err != nil {
			t.Fatal(err)
		}
		if res.StatusCode != test.statusCode {
			t.Errorf("%s: Expected status code %d, got %d: %s", test.name, test.statusCode, res.StatusCode, string(response))
			continue
		}
		if test.expectedResponse == nil {
			continue
		}
		expected, err := test.expectedResponse(gateway)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(response, expected) {
			t.Errorf("%s: Expected response %s, got %s", test.name, string(expected), string(response))
			continue
		}
	}
}
