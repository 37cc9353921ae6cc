// SPDX-FileCopyrightText: 2023 The guacamole-go authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package status

import "testing"

func TestCodeIsError(t *testing.T) {
	tests := []struct {
		code    Code
		isError bool
	}{
		{Success, false},
		{Code(0x00FF), false},
		{Unsupported, true},
		{ServerError, true},
		{UpstreamTimeout, true},
		{ResourceNotFound, true},
		{ClientBadRequest, true},
		{ClientTooMany, true},
		{Code(-1), true},
		{Code(0x0100), true},
	}

	for _, test := range tests {
		if isError := test.code.IsError(); isError != test.isError {
			t.Errorf("%v: expected IsError() = %t, got %t", test.code, test.isError, isError)
		}
	}
}

func TestFromHTTPCode(t *testing.T) {
	tests := []struct {
		httpCode int
		code     Code
	}{
		{400, ClientBadRequest},
		{403, ClientForbidden},
		{404, ResourceNotFound},
		{429, ClientTooMany},
		{503, ServerBusy},
		{500, ServerError},
		{502, ServerError},
	}

	for _, test := range tests {
		if code := FromHTTPCode(test.httpCode); code != test.code {
			t.Errorf("HTTP %d: expected %v, got %v", test.httpCode, test.code, code)
		}
	}
}

func TestFromWebSocketCode(t *testing.T) {
	if code := FromWebSocketCode(1000); code != Success {
		t.Errorf("close code 1000: expected SUCCESS, got %v", code)
	}
	if code := FromWebSocketCode(1006); code != UpstreamError {
		t.Errorf("close code 1006: expected UPSTREAM_ERROR, got %v", code)
	}
	if code := FromWebSocketCode(4242); !code.IsError() {
		t.Error("unknown close code must map to an error")
	}
}

func TestStatusMessage(t *testing.T) {
	s := New(UpstreamTimeout)
	if s.Message != "UPSTREAM_TIMEOUT" {
		t.Errorf("default message: got %q", s.Message)
	}

	s = New(ServerError, "guacd crashed")
	if s.Message != "guacd crashed" {
		t.Errorf("explicit message: got %q", s.Message)
	}
	if s.Error() == "" {
		t.Error("Status must satisfy the error interface with a non-empty message")
	}
}
