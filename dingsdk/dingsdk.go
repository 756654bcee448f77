package dingsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"github.com/egaotan/solana-crowdsale/crowdsale"
	"github.com/egaotan/solana-crowdsale/store"
	"go.uber.org/zap"
	"io"
	"net/http"
	"time"
)

// DingTalk robot message, msgtype "text".
type DingContent struct {
	Content string `json:"content"`
}

type DingAt struct {
	IsAtAll bool `json:"isAtAll"`
}

type DingNotify struct {
	MsgType string      `json:"msgtype"`
	Text    DingContent `json:"text"`
	At      DingAt      `json:"at"`
}

type DingResult struct {
	ErrCode int64  `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

func Text(content string) *DingNotify {
	return &DingNotify{
		MsgType: "text",
		Text:    DingContent{Content: content},
	}
}

// DingSdk posts crowdsale events to a robot webhook.
type DingSdk struct {
	ctx    context.Context
	logger *zap.Logger
	url    string
	client *http.Client
}

func NewDingSdk(ctx context.Context, logger *zap.Logger, url string) *DingSdk {
	sdk := &DingSdk{
		ctx:    ctx,
		logger: logger.Named("dingsdk"),
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
	return sdk
}

func (sdk *DingSdk) Notify(ctx context.Context, notify *DingNotify) (*DingResult, error) {
	body, err := json.Marshal(notify)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sdk.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	resp, err := sdk.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("response status code: %d", resp.StatusCode)
	}
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	result := new(DingResult)
	if err := json.Unmarshal(respBody, result); err != nil {
		return nil, err
	}
	if result.ErrCode != 0 || result.ErrMsg != "ok" {
		return nil, fmt.Errorf("code: %d, err: %s", result.ErrCode, result.ErrMsg)
	}
	return result, nil
}

// ExecutionText renders one journaled instruction for a chat message.
func ExecutionText(execution *store.Execution) string {
	text := fmt.Sprintf("crowdsale %s %s\nsale: %s\nsigner: %s\namount: %d\nlamports: %d\nslot: %d\nsignature: %s",
		execution.Operation, execution.Status, execution.Sale, execution.Signer,
		execution.Amount, execution.Lamports, execution.Slot, execution.Signature)
	if execution.Error != "" {
		text += "\nerror: " + execution.Error
	}
	return text
}

// OnExecution notifies successful purchases and withdrawals. Delivery runs
// in the background and failures are only logged.
func (sdk *DingSdk) OnExecution(execution *store.Execution) {
	if execution.Status != store.StatusSuccess || execution.Operation == string(crowdsale.OperationInitialize) {
		return
	}
	notify := Text(ExecutionText(execution))
	go func() {
		if _, err := sdk.Notify(sdk.ctx, notify); err != nil {
			sdk.logger.Warn("notify", zap.String("signature", execution.Signature), zap.Error(err))
		}
	}()
}
