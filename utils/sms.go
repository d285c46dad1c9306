package utils

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aliyun/alibaba-cloud-sdk-go/services/dysmsapi"

	"github.com/cppla/eduboard/config"
)

var (
	// ErrSMSRateLimited means the gateway throttled this number or account.
	ErrSMSRateLimited = errors.New("sms: rate limited")
	// ErrSMSQuotaExceeded means the account ran out of sending quota.
	ErrSMSQuotaExceeded = errors.New("sms: quota exceeded")
)

// SMSSender delivers verification codes to a phone number in E.164 form.
type SMSSender interface {
	SendCode(ctx context.Context, phone, code string) error
}

// NewSMSSender builds the configured gateway.
func NewSMSSender(cfg config.AppConfig) (SMSSender, error) {
	switch cfg.SMSProvider {
	case "aliyun":
		return NewAliyunSMSSender(cfg)
	case "log", "":
		return LogSMSSender{}, nil
	default:
		return nil, fmt.Errorf("unknown sms provider %q", cfg.SMSProvider)
	}
}

// AliyunSMSSender sends through Aliyun Short Message Service.
type AliyunSMSSender struct {
	client       *dysmsapi.Client
	signName     string
	templateCode string
}

func NewAliyunSMSSender(cfg config.AppConfig) (*AliyunSMSSender, error) {
	if cfg.SMSAccessKeyID == "" || cfg.SMSTemplateCode == "" {
		return nil, errors.New("sms config is missing")
	}
	client, err := dysmsapi.NewClientWithAccessKey(cfg.SMSRegion, cfg.SMSAccessKeyID, cfg.SMSAccessKeySecret)
	if err != nil {
		return nil, err
	}
	return &AliyunSMSSender{client: client, signName: cfg.SMSSignName, templateCode: cfg.SMSTemplateCode}, nil
}

func (s *AliyunSMSSender) SendCode(_ context.Context, phone, code string) error {
	param, _ := json.Marshal(map[string]string{"code": code})

	request := dysmsapi.CreateSendSmsRequest()
	request.Scheme = "https"
	request.PhoneNumbers = strings.TrimPrefix(phone, "+")
	request.SignName = s.signName
	request.TemplateCode = s.templateCode
	request.TemplateParam = string(param)

	resp, err := s.client.SendSms(request)
	if err != nil {
		return err
	}
	return smsError(resp.Code, resp.Message)
}

// smsError maps Aliyun business codes onto the sentinel errors.
func smsError(code, message string) error {
	switch code {
	case "OK":
		return nil
	case "isv.BUSINESS_LIMIT_CONTROL", "isv.DAY_LIMIT_CONTROL", "isv.MOBILE_COUNT_OVER_LIMIT":
		return ErrSMSRateLimited
	case "isv.AMOUNT_NOT_ENOUGH", "isv.OUT_OF_SERVICE":
		return ErrSMSQuotaExceeded
	default:
		return fmt.Errorf("sms: %s: %s", code, message)
	}
}

// LogSMSSender writes codes to the log instead of sending them. Development only.
type LogSMSSender struct{}

func (LogSMSSender) SendCode(_ context.Context, phone, code string) error {
	Sugar.Infow("sms code (not sent)", "phone", MaskPhone(phone), "code", code)
	return nil
}
