package protocol

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wxconsole/internal/models"
)

func TestClient_TestConnection_WeCharPadPro(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		expected   bool
	}{
		{"health ok", http.StatusOK, true},
		{"server error", http.StatusInternalServerError, false},
		{"not found", http.StatusNotFound, false},
		{"redirect not accepted", http.StatusMovedPermanently, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/health", r.URL.Path)
				assert.Equal(t, http.MethodGet, r.Method)
				w.WriteHeader(tt.statusCode)
			}))
			defer server.Close()

			client := NewClientForURL(server.URL, models.ConnectionTypeWeCharPadPro, "", 0)
			assert.Equal(t, tt.expected, client.TestConnection(context.Background()))
		})
	}
}

func TestClient_TestConnection_Wechatx(t *testing.T) {
	// 能连上服务器即算成功，鉴权失败之类的错误码同样证明服务在线
	tests := []struct {
		name       string
		statusCode int
		expected   bool
	}{
		{"ok", http.StatusOK, true},
		{"bad request", http.StatusBadRequest, true},
		{"unauthorized", http.StatusUnauthorized, true},
		{"forbidden", http.StatusForbidden, true},
		{"internal error", http.StatusInternalServerError, true},
		{"not found", http.StatusNotFound, false},
		{"bad gateway", http.StatusBadGateway, false},
	}

	for _, connType := range []models.ConnectionType{models.ConnectionTypeWechatx, models.ConnectionTypeWechatx861} {
		for _, tt := range tests {
			t.Run(string(connType)+"/"+tt.name, func(t *testing.T) {
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					assert.Equal(t, "/api/Login/GetQR", r.URL.Path)
					assert.Equal(t, http.MethodPost, r.Method)
					w.WriteHeader(tt.statusCode)
				}))
				defer server.Close()

				client := NewClientForURL(server.URL, connType, "", 0)
				assert.Equal(t, tt.expected, client.TestConnection(context.Background()))
			})
		}
	}
}

func TestClient_TestConnection_UnknownType(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		expected   bool
	}{
		{"ok", http.StatusOK, true},
		{"not found still reachable", http.StatusNotFound, true},
		{"server error", http.StatusInternalServerError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
			}))
			defer server.Close()

			client := NewClientForURL(server.URL, "legacy", "", 0)
			assert.Equal(t, tt.expected, client.TestConnection(context.Background()))
		})
	}
}

func TestClient_TestConnection_Unreachable(t *testing.T) {
	// 连不上的服务器一律返回false，不上抛错误
	for _, connType := range []models.ConnectionType{
		models.ConnectionTypeWeCharPadPro,
		models.ConnectionTypeWechatx,
		"legacy",
	} {
		client := NewClientForURL("http://127.0.0.1:1", connType, "", 0)
		assert.False(t, client.TestConnection(context.Background()), string(connType))
	}
}

func TestClient_GenAuthKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/GenAuthKey1", r.URL.Path)
		assert.Equal(t, "admin123", r.URL.Query().Get("key"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"Code": 200, "Data": ["auth-key-001"], "Text": ""}`))
	}))
	defer server.Close()

	client := NewClientForURL(server.URL, models.ConnectionTypeWeCharPadPro, "admin123", 0)
	key, err := client.GenAuthKey(context.Background(), 1, 30)
	require.NoError(t, err)
	assert.Equal(t, "auth-key-001", key)
}

func TestClient_GenAuthKey_BusinessError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"Code": 500, "Data": [], "Text": "invalid admin key"}`))
	}))
	defer server.Close()

	client := NewClientForURL(server.URL, models.ConnectionTypeWeCharPadPro, "wrong", 0)
	_, err := client.GenAuthKey(context.Background(), 1, 30)
	assert.Error(t, err)
}

func TestClient_GetLoginQRCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/login/GetLoginQrCodeNew", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		// 真正的扫码内容嵌在QrCodeUrl的url查询参数里
		w.Write([]byte(`{"Code": 200, "Data": {"QrCodeUrl": "http://qr.example.com/gen?url=http://login.weixin.qq.com/l/uuid-123"}, "Text": ""}`))
	}))
	defer server.Close()

	client := NewClientForURL(server.URL, models.ConnectionTypeWeCharPadPro, "", 0)
	qrData, uuid, err := client.GetLoginQRCode(context.Background(), "auth-key")
	require.NoError(t, err)
	assert.Equal(t, "http://login.weixin.qq.com/l/uuid-123", qrData)
	assert.Equal(t, "uuid-123", uuid)
}

func TestClient_GetLoginQRCode_MissingEmbeddedData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"Code": 200, "Data": {"QrCodeUrl": "http://qr.example.com/gen"}, "Text": ""}`))
	}))
	defer server.Close()

	client := NewClientForURL(server.URL, models.ConnectionTypeWeCharPadPro, "", 0)
	_, _, err := client.GetLoginQRCode(context.Background(), "auth-key")
	assert.Error(t, err)
}

func TestClient_CheckLoginStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/login/CheckLoginStatus", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"Code": 200, "Data": {"status": 3, "wxid": "wxid_test", "name": "测试号"}, "Text": ""}`))
	}))
	defer server.Close()

	client := NewClientForURL(server.URL, models.ConnectionTypeWeCharPadPro, "", 0)
	status, err := client.CheckLoginStatus(context.Background(), "auth-key", "uuid-123")
	require.NoError(t, err)
	assert.Equal(t, LoginStatusSuccess, status.Status)
	assert.Equal(t, "wxid_test", status.Wxid)
	assert.Equal(t, "测试号", status.Nickname)
}

func TestClient_GetLoginStatus(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected bool
	}{
		{"online", `{"Code": 200, "Data": {"loginState": 1}}`, true},
		{"code 200 but null data", `{"Code": 200, "Data": null}`, false},
		{"business error", `{"Code": 500, "Text": "not logged in"}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/login/GetLoginStatus", r.URL.Path)
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewClientForURL(server.URL, models.ConnectionTypeWeCharPadPro, "", 0)
			online, err := client.GetLoginStatus(context.Background(), "auth-key")
			require.NoError(t, err)
			assert.Equal(t, tt.expected, online)
		})
	}
}

func TestClient_GetReadCount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/Article/GetReadCount", r.URL.Path)
		assert.Equal(t, "http://article.example.com/1", r.URL.Query().Get("url"))
		assert.Equal(t, "wxid_a", r.URL.Query().Get("wxid"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success": true, "read_count": 1024}`))
	}))
	defer server.Close()

	client := NewClientForURL(server.URL, models.ConnectionTypeWechatx, "", 0)
	count, err := client.GetReadCount(context.Background(), "http://article.example.com/1", "wxid_a")
	require.NoError(t, err)
	assert.Equal(t, 1024, count)
}

func TestClient_ReadArticle_Failure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success": false, "message": "账号已离线"}`))
	}))
	defer server.Close()

	client := NewClientForURL(server.URL, models.ConnectionTypeWechatx, "", 0)
	err := client.ReadArticle(context.Background(), "http://article.example.com/1", "wxid_a")
	assert.Error(t, err)
}

func TestClient_GetQRAndCheckQR(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/Login/GetQR":
			w.Write([]byte(`{"success": true, "data": {"uuid": "qr-uuid-1", "qr_url": "http://qr.example.com/1"}}`))
		case "/api/Login/CheckQR":
			w.Write([]byte(`{"success": true, "data": {"status": 2, "wxid": "", "nickname": ""}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewClientForURL(server.URL, models.ConnectionTypeWechatx, "", 0)

	uuid, qrURL, err := client.GetQR(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "qr-uuid-1", uuid)
	assert.Equal(t, "http://qr.example.com/1", qrURL)

	status, err := client.CheckQR(context.Background(), uuid)
	require.NoError(t, err)
	assert.Equal(t, LoginStatusScanned, status.Status)
}
