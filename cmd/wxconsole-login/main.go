package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/mdp/qrterminal/v3"

	"wxconsole/internal/models"
	"wxconsole/internal/protocol"
)

func main() {
	serverURL := flag.String("url", "http://localhost:8059", "协议服务地址")
	adminKey := flag.String("key", "12345", "管理密钥")
	connType := flag.String("type", string(models.ConnectionTypeWeCharPadPro), "连接类型 (WeCharPadPro/wechatx/wechatx-861)")
	flag.Parse()

	fmt.Println("🚀 微信扫码登录工具")
	fmt.Println("================================")

	ct := models.ConnectionType(*connType)
	if !models.IsValidConnectionType(ct) {
		log.Fatalf("❌ 不支持的连接类型: %s", *connType)
	}

	client := protocol.NewClientForURL(*serverURL, ct, *adminKey, protocol.DefaultTimeout)
	ctx := context.Background()

	var wxid string
	var err error
	if ct.IsWechatxFamily() {
		wxid, err = loginWechatx(ctx, client)
	} else {
		wxid, err = loginPadPro(ctx, client)
	}
	if err != nil {
		log.Fatalf("❌ 登录失败: %v", err)
	}

	fmt.Printf("\n🎉 登录成功!\n")
	fmt.Printf("👤 微信ID: %s\n", wxid)
	fmt.Printf("📝 可在控制台的授权码列表中查看此账号\n")
}

// loginPadPro WeChatPadPro扫码登录流程
func loginPadPro(ctx context.Context, client *protocol.Client) (string, error) {
	authKey, err := client.GenAuthKey(ctx, 1, 30)
	if err != nil {
		return "", fmt.Errorf("生成授权码失败: %v", err)
	}

	qrData, uuid, err := client.GetLoginQRCode(ctx, authKey)
	if err != nil {
		return "", fmt.Errorf("获取二维码失败: %v", err)
	}
	showQRCode(qrData)

	for i := 0; i < 60; i++ {
		status, err := client.CheckLoginStatus(ctx, authKey, uuid)
		if err != nil {
			time.Sleep(5 * time.Second)
			continue
		}

		switch status.Status {
		case protocol.LoginStatusWaiting:
			fmt.Print("⏳ 等待扫码...")
		case protocol.LoginStatusScanned:
			fmt.Print("📱 已扫码，等待确认...")
		case protocol.LoginStatusSuccess:
			fmt.Println("✅ 登录成功!")
			return status.Wxid, nil
		case protocol.LoginStatusFailed:
			return "", fmt.Errorf("登录被拒绝")
		case protocol.LoginStatusTimeout:
			return "", fmt.Errorf("二维码已过期")
		}

		time.Sleep(5 * time.Second)
		fmt.Print(".")
	}

	return "", fmt.Errorf("登录超时")
}

// loginWechatx wechatx系列扫码登录流程
func loginWechatx(ctx context.Context, client *protocol.Client) (string, error) {
	uuid, qrURL, err := client.GetQR(ctx)
	if err != nil {
		return "", fmt.Errorf("获取二维码失败: %v", err)
	}
	showQRCode(qrURL)

	for i := 0; i < 60; i++ {
		status, err := client.CheckQR(ctx, uuid)
		if err != nil {
			time.Sleep(5 * time.Second)
			continue
		}

		switch status.Status {
		case protocol.LoginStatusWaiting:
			fmt.Print("⏳ 等待扫码...")
		case protocol.LoginStatusScanned:
			fmt.Print("📱 已扫码，等待确认...")
		case protocol.LoginStatusSuccess:
			fmt.Println("✅ 登录成功!")
			return status.Wxid, nil
		case protocol.LoginStatusFailed:
			return "", fmt.Errorf("登录被拒绝")
		case protocol.LoginStatusTimeout:
			return "", fmt.Errorf("二维码已过期")
		}

		time.Sleep(5 * time.Second)
		fmt.Print(".")
	}

	return "", fmt.Errorf("登录超时")
}

// showQRCode 在终端渲染二维码
func showQRCode(data string) {
	fmt.Println("\n📲 请使用微信扫描下方二维码:")
	fmt.Println("==================================")
	qrterminal.Generate(data, qrterminal.M, os.Stdout)
	fmt.Println("==================================")
}
