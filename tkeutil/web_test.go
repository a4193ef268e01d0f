/*
Copyright © 2023 the TKEmix authors.
This file is part of TKEmix.

TKEmix is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

TKEmix is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with TKEmix.  If not, see <http://www.gnu.org/licenses/>.
*/

package tkeutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

func TestSetConfigHandler(t *testing.T) {
	defer Root.PersistentFlags().Set("config", "")
	log, hook := logtest.NewNullLogger()
	h := setConfigHandler(log)

	post := func(config string) *httptest.ResponseRecorder {
		form := url.Values{"config": {config}}
		r := httptest.NewRequest(http.MethodPost, "/setConfig", strings.NewReader(form.Encode()))
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w
	}

	w := post(filepath.Join(t.TempDir(), "missing.toml"))
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, hook.LastEntry())
	require.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	require.Equal(t, "loading configuration", hook.LastEntry().Message)
	hook.Reset()

	cfgFile := filepath.Join(t.TempDir(), "tkemix.toml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("GroupSize = 64\n"), 0644))
	w = post(cfgFile)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Empty(t, hook.AllEntries())
	var config map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&config))
	require.Equal(t, 64.0, config["GroupSize"])
}
