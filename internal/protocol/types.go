package protocol

// WeChatPadPro系列接口的请求/响应结构。
// 字段大小写与协议服务返回的原始JSON保持一致。

// GenAuthKeyRequest 生成授权码请求
type GenAuthKeyRequest struct {
	Count int `json:"Count"`
	Days  int `json:"Days"`
}

// GenAuthKeyResponse 生成授权码响应
type GenAuthKeyResponse struct {
	Code int      `json:"Code"`
	Data []string `json:"Data"`
	Text string   `json:"Text"`
}

// GetLoginQrCodeRequest 获取登录二维码请求
type GetLoginQrCodeRequest struct {
	Check bool   `json:"Check"`
	Proxy string `json:"Proxy"`
}

// GetLoginQrCodeResponse 获取登录二维码响应
type GetLoginQrCodeResponse struct {
	Code int `json:"Code"`
	Data struct {
		Key       string `json:"Key"`
		QrCodeUrl string `json:"QrCodeUrl"`
		Txt       string `json:"Txt"`
		BaseResp  struct {
			Ret    int         `json:"ret"`
			ErrMsg interface{} `json:"errMsg"`
		} `json:"baseResp"`
	} `json:"Data"`
	Text string `json:"Text"`
}

// CheckLoginStatusRequest 检查登录状态请求
type CheckLoginStatusRequest struct {
	AuthKey string `json:"auth_key"`
	UUID    string `json:"uuid"`
}

// CheckLoginStatusResponse 检查登录状态响应
type CheckLoginStatusResponse struct {
	Code int `json:"Code"`
	Data struct {
		Status int    `json:"status"`
		Wxid   string `json:"wxid"`
		Avatar string `json:"avatar"`
		Name   string `json:"name"`
	} `json:"Data"`
	Text string `json:"Text"`
}

// GenericResponse WeChatPadPro通用响应外壳
type GenericResponse struct {
	Code int         `json:"Code"`
	Data interface{} `json:"Data"`
	Text string      `json:"Text"`
}

// 登录状态常量（协议服务的数字状态码）
const (
	LoginStatusWaiting = 1 // 等待扫码
	LoginStatusScanned = 2 // 已扫码，等待确认
	LoginStatusSuccess = 3 // 登录成功
	LoginStatusFailed  = 4 // 登录失败
	LoginStatusTimeout = 5 // 超时
)

// LoginStatus 一次登录状态查询的归一化结果
type LoginStatus struct {
	Status   int
	Wxid     string
	Nickname string
	Avatar   string
}

// wechatx系列接口的请求/响应结构。

// WechatxQRResponse wechatx获取二维码响应
type WechatxQRResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		UUID  string `json:"uuid"`
		QRURL string `json:"qr_url"`
	} `json:"data"`
}

// WechatxCheckQRResponse wechatx检查扫码状态响应
type WechatxCheckQRResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		Status   int    `json:"status"`
		Wxid     string `json:"wxid"`
		Nickname string `json:"nickname"`
	} `json:"data"`
}

// ReadCountResponse 文章阅读量查询响应
type ReadCountResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	ReadCount int    `json:"read_count"`
}

// ReadArticleRequest 文章阅读请求
type ReadArticleRequest struct {
	URL  string `json:"url"`
	Wxid string `json:"wxid"`
}

// ReadArticleResponse 文章阅读响应
type ReadArticleResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
