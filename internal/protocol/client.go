package protocol

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"wxconsole/internal/errors"
	"wxconsole/internal/logger"
	"wxconsole/internal/models"
)

// DefaultTimeout 出站请求默认超时
const DefaultTimeout = 5 * time.Second

// Client 协议服务客户端
//
// 按连接类型分派到不同的接口表，一个Client绑定一台协议服务器。
type Client struct {
	httpClient *resty.Client
	baseURL    string
	connType   models.ConnectionType
	adminKey   string
	logger     *logger.Logger
}

// NewClient 基于连接配置创建客户端
func NewClient(conn *models.Connection, timeout time.Duration) *Client {
	return NewClientForURL(conn.BaseURL(), conn.ConnectionType, conn.AdminKey, timeout)
}

// NewClientForURL 基于裸地址创建客户端
func NewClientForURL(baseURL string, connType models.ConnectionType, adminKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	httpClient := resty.New()
	httpClient.SetBaseURL(strings.TrimRight(baseURL, "/"))
	httpClient.SetTimeout(timeout)
	httpClient.SetHeader("Content-Type", "application/json")
	httpClient.SetHeader("Accept", "application/json")

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		connType:   connType,
		adminKey:   adminKey,
		logger:     logger.NewLogger("protocol-client"),
	}
}

// BaseURL 客户端绑定的服务器地址
func (c *Client) BaseURL() string {
	return c.baseURL
}

// TestConnection 测试连接可达性
//
// 按连接类型选择探测端点，任何异常一律吞掉并返回false：
//   - WeCharPadPro: GET /health，仅200算成功
//   - wechatx系列: POST /api/Login/GetQR，能连上服务器即算成功，
//     即使返回的是错误状态码（200/400/401/403/500）
//   - 未知类型: GET /，状态码小于500算成功
func (c *Client) TestConnection(ctx context.Context) bool {
	switch c.connType {
	case models.ConnectionTypeWeCharPadPro:
		resp, err := c.httpClient.R().SetContext(ctx).Get("/health")
		if err != nil {
			c.logger.Debug("Health probe failed", logger.Fields{
				"url":   c.baseURL,
				"error": err.Error(),
			})
			return false
		}
		return resp.StatusCode() == 200

	case models.ConnectionTypeWechatx, models.ConnectionTypeWechatx861:
		resp, err := c.httpClient.R().
			SetContext(ctx).
			SetBody(map[string]interface{}{}).
			Post("/api/Login/GetQR")
		if err != nil {
			c.logger.Debug("GetQR probe failed", logger.Fields{
				"url":   c.baseURL,
				"error": err.Error(),
			})
			return false
		}
		switch resp.StatusCode() {
		case 200, 400, 401, 403, 500:
			return true
		}
		return false

	default:
		resp, err := c.httpClient.R().SetContext(ctx).Get("/")
		if err != nil {
			return false
		}
		return resp.StatusCode() < 500
	}
}

// GenAuthKey 生成授权码（WeChatPadPro）
func (c *Client) GenAuthKey(ctx context.Context, count, days int) (string, error) {
	var authResp GenAuthKeyResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("key", c.adminKey).
		SetBody(GenAuthKeyRequest{Count: count, Days: days}).
		SetResult(&authResp).
		Post("/admin/GenAuthKey1")
	if err != nil {
		return "", errors.ErrProtocolRequest("GenAuthKey1 request failed", err)
	}
	if resp.IsError() {
		return "", errors.ErrProtocolResponse("GenAuthKey1 returned HTTP " + resp.Status())
	}
	if authResp.Code != 200 {
		return "", errors.ErrProtocolResponse(authResp.Text).WithContext(map[string]interface{}{
			"code": authResp.Code,
		})
	}
	if len(authResp.Data) == 0 {
		return "", errors.ErrProtocolResponse("GenAuthKey1 returned empty data")
	}
	return authResp.Data[0], nil
}

// GetLoginQRCode 获取登录二维码（WeChatPadPro）
//
// 协议服务返回的QrCodeUrl是二维码图片地址，真正的扫码内容嵌在其url查询参数里，
// 末段即为会话uuid。
func (c *Client) GetLoginQRCode(ctx context.Context, authKey string) (qrData, uuid string, err error) {
	var qrResp GetLoginQrCodeResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("key", authKey).
		SetBody(GetLoginQrCodeRequest{Check: false, Proxy: ""}).
		SetResult(&qrResp).
		Post("/login/GetLoginQrCodeNew")
	if err != nil {
		return "", "", errors.ErrProtocolRequest("GetLoginQrCodeNew request failed", err)
	}
	if resp.IsError() {
		return "", "", errors.ErrProtocolResponse("GetLoginQrCodeNew returned HTTP " + resp.Status())
	}
	if qrResp.Code != 200 {
		return "", "", errors.ErrProtocolResponse(qrResp.Text).WithContext(map[string]interface{}{
			"code": qrResp.Code,
		})
	}

	parsedURL, err := url.Parse(qrResp.Data.QrCodeUrl)
	if err != nil {
		return "", "", errors.ErrProtocolResponse("invalid qr code url").WithCause(err)
	}
	actualQrData := parsedURL.Query().Get("url")
	if actualQrData == "" {
		return "", "", errors.ErrProtocolResponse("qr code url missing embedded data")
	}
	parts := strings.Split(actualQrData, "/")
	return actualQrData, parts[len(parts)-1], nil
}

// CheckLoginStatus 检查扫码登录状态（WeChatPadPro）
func (c *Client) CheckLoginStatus(ctx context.Context, authKey, uuid string) (*LoginStatus, error) {
	var statusResp CheckLoginStatusResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(CheckLoginStatusRequest{AuthKey: authKey, UUID: uuid}).
		SetResult(&statusResp).
		Post("/login/CheckLoginStatus")
	if err != nil {
		return nil, errors.ErrProtocolRequest("CheckLoginStatus request failed", err)
	}
	if resp.IsError() {
		return nil, errors.ErrProtocolResponse("CheckLoginStatus returned HTTP " + resp.Status())
	}
	return &LoginStatus{
		Status:   statusResp.Data.Status,
		Wxid:     statusResp.Data.Wxid,
		Nickname: statusResp.Data.Name,
		Avatar:   statusResp.Data.Avatar,
	}, nil
}

// GetLoginStatus 查询账号在线状态（WeChatPadPro）
//
// Code为200且Data非空视为在线；服务返回的业务错误不作为error上抛。
func (c *Client) GetLoginStatus(ctx context.Context, authKey string) (bool, error) {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("key", authKey).
		Get("/login/GetLoginStatus")
	if err != nil {
		return false, errors.ErrProtocolRequest("GetLoginStatus request failed", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return false, errors.ErrProtocolResponse("GetLoginStatus returned invalid JSON").WithCause(err)
	}

	if code, ok := result["Code"].(float64); ok && code == 200 {
		if data, ok := result["Data"]; ok && data != nil {
			return true, nil
		}
	}
	return false, nil
}

// TwiceAutoAuth 免扫码重连登录（WeChatPadPro）
//
// 返回原始响应体供审计日志保存。
func (c *Client) TwiceAutoAuth(ctx context.Context, authKey string) (success bool, rawResponse string, err error) {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("key", authKey).
		Post("/login/TwiceAutoAuth")
	if err != nil {
		return false, "", errors.ErrProtocolRequest("TwiceAutoAuth request failed", err)
	}

	raw := string(resp.Body())
	var result GenericResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return false, raw, errors.ErrProtocolResponse("TwiceAutoAuth returned invalid JSON").WithCause(err)
	}
	return result.Code == 200, raw, nil
}

// GetReadCount 查询文章阅读量（wechatx）
func (c *Client) GetReadCount(ctx context.Context, articleURL, wxid string) (int, error) {
	var countResp ReadCountResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("url", articleURL).
		SetQueryParam("wxid", wxid).
		SetResult(&countResp).
		Get("/api/Article/GetReadCount")
	if err != nil {
		return 0, errors.ErrProtocolRequest("GetReadCount request failed", err)
	}
	if resp.IsError() {
		return 0, errors.ErrProtocolResponse("GetReadCount returned HTTP " + resp.Status())
	}
	if !countResp.Success {
		return 0, errors.ErrProtocolResponse(countResp.Message)
	}
	return countResp.ReadCount, nil
}

// ReadArticle 通过指定账号阅读文章（wechatx）
func (c *Client) ReadArticle(ctx context.Context, articleURL, wxid string) error {
	var readResp ReadArticleResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(ReadArticleRequest{URL: articleURL, Wxid: wxid}).
		SetResult(&readResp).
		Post("/api/Article/Read")
	if err != nil {
		return errors.ErrProtocolRequest("ReadArticle request failed", err)
	}
	if resp.IsError() {
		return errors.ErrProtocolResponse("ReadArticle returned HTTP " + resp.Status())
	}
	if !readResp.Success {
		return errors.ErrProtocolResponse(readResp.Message)
	}
	return nil
}

// GetQR 获取登录二维码（wechatx）
func (c *Client) GetQR(ctx context.Context) (uuid, qrURL string, err error) {
	var qrResp WechatxQRResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{}).
		SetResult(&qrResp).
		Post("/api/Login/GetQR")
	if err != nil {
		return "", "", errors.ErrProtocolRequest("GetQR request failed", err)
	}
	if resp.IsError() {
		return "", "", errors.ErrProtocolResponse("GetQR returned HTTP " + resp.Status())
	}
	if !qrResp.Success {
		return "", "", errors.ErrProtocolResponse(qrResp.Message)
	}
	return qrResp.Data.UUID, qrResp.Data.QRURL, nil
}

// CheckQR 检查扫码状态（wechatx）
func (c *Client) CheckQR(ctx context.Context, uuid string) (*LoginStatus, error) {
	var checkResp WechatxCheckQRResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(map[string]string{"uuid": uuid}).
		SetResult(&checkResp).
		Post("/api/Login/CheckQR")
	if err != nil {
		return nil, errors.ErrProtocolRequest("CheckQR request failed", err)
	}
	if resp.IsError() {
		return nil, errors.ErrProtocolResponse("CheckQR returned HTTP " + resp.Status())
	}
	return &LoginStatus{
		Status:   checkResp.Data.Status,
		Wxid:     checkResp.Data.Wxid,
		Nickname: checkResp.Data.Nickname,
	}, nil
}
