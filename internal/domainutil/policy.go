package domainutil

import "strings"

// CheckIssuePolicy 校验用户提交的域名是否允许签发
// 规则：
//   - 不允许包含通配符 *（通配符由系统自动追加）
//   - 选定证书类型后只允许注册域名（PSL eTLD+1），根域名/通配符一视同仁
//
// 返回空字符串表示通过，否则返回面向用户的拒绝原因。
func CheckIssuePolicy(domain, certType string) string {
	if strings.Contains(domain, "*") {
		return "❌ 请不要输入通配符格式（*.example.com），只需要输入主域名，例如 <b>example.com</b>。"
	}

	if certType == "" {
		return ""
	}

	apex, err := EffectiveApex(domain)
	if err != nil {
		return "❌ 域名格式错误，请检查后重试。"
	}
	if apex != domain {
		if certType == "wildcard" {
			return "⚠️ 通配符证书请输入主域名（根域名），例如 <b>example.com</b>，不要输入子域名。"
		}
		return "⚠️ 根域名证书请输入主域名（根域名），例如 <b>example.com</b>，不要输入子域名。"
	}

	return ""
}
