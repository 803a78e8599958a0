package webhook

import (
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
)

const (
	// EmptyResponseText 是 webhook 返回空内容时展示的诊断信息
	EmptyResponseText = "Webhook retornou resposta vazia. Verifique a configuração do n8n."
	// FallbackText 在所有规则处理后结果仍为空时使用
	FallbackText = "Resposta recebida com sucesso!"
)

// Envelope 标识已知的响应结构
type Envelope int

const (
	Unrecognized Envelope = iota
	ResponseField
	OutputEnvelope
	MessageField
)

func (e Envelope) String() string {
	switch e {
	case ResponseField:
		return "response"
	case OutputEnvelope:
		return "output"
	case MessageField:
		return "message"
	default:
		return "unrecognized"
	}
}

type matcher struct {
	envelope Envelope
	match    func(doc gjson.Result) (string, bool)
}

// 匹配顺序即优先级，不可调整
var matchers = []matcher{
	{ResponseField, matchStringField("response")},
	{OutputEnvelope, matchOutput},
	{MessageField, matchStringField("message")},
}

// outputField 是 output 对象中的已知字段及其展示标签
type outputField struct {
	key   string
	label string
}

var outputFields = []outputField{
	{"Descricao", "Ingredientes"},
	{"Valor", "Porção"},
	{"Categoria", "Categoria"},
	{"Resumo", "Resumo"},
}

// Normalize 将 webhook 的原始响应体转换为一条可展示的文本
func Normalize(body string) string {
	text, _ := Classify(body)
	return text
}

// Classify 与 Normalize 相同，同时返回命中的响应结构
func Classify(body string) (string, Envelope) {
	if strings.TrimSpace(body) == "" {
		return EmptyResponseText, Unrecognized
	}

	// 非 JSON 直接按纯文本返回
	if !gjson.Valid(body) {
		return body, Unrecognized
	}

	doc := gjson.Parse(body)
	for _, m := range matchers {
		if text, ok := m.match(doc); ok {
			return orFallback(text), m.envelope
		}
	}

	return orFallback(prettyJSON(doc.Raw)), Unrecognized
}

func matchStringField(key string) func(gjson.Result) (string, bool) {
	return func(doc gjson.Result) (string, bool) {
		if !doc.IsObject() {
			return "", false
		}
		v := doc.Get(key)
		if v.Type != gjson.String || v.Str == "" {
			return "", false
		}
		return v.Str, true
	}
}

func matchOutput(doc gjson.Result) (string, bool) {
	if !doc.IsObject() {
		return "", false
	}
	output := doc.Get("output")
	if !output.IsObject() {
		return "", false
	}

	if v := output.Get("Resumo"); truthy(v) {
		return fieldText(v), true
	}
	if v := output.Get("Descricao"); truthy(v) {
		return fieldText(v), true
	}

	lines := make([]string, 0, len(outputFields))
	for _, f := range outputFields {
		v := output.Get(f.key)
		if !truthy(v) {
			continue
		}
		lines = append(lines, "**"+f.label+":** "+fieldText(v))
	}
	if len(lines) > 0 {
		return strings.Join(lines, "\n\n"), true
	}

	return prettyJSON(output.Raw), true
}

// truthy 判断字段是否“存在”：null、false、0、空字符串视为缺失
func truthy(v gjson.Result) bool {
	switch v.Type {
	case gjson.Null:
		return false
	case gjson.False:
		return false
	case gjson.Number:
		return v.Num != 0
	case gjson.String:
		return v.Str != ""
	case gjson.True, gjson.JSON:
		return true
	}
	return false
}

func fieldText(v gjson.Result) string {
	if v.Type == gjson.String {
		return v.Str
	}
	return v.Raw
}

func prettyJSON(raw string) string {
	out := pretty.PrettyOptions([]byte(raw), &pretty.Options{
		Width:  -1, // 数组始终展开
		Indent: "  ",
	})
	return strings.TrimRight(string(out), "\n")
}

func orFallback(text string) string {
	if text == "" {
		return FallbackText
	}
	return text
}
