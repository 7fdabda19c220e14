package intake

// Canned replies and prompt templates for the intake assistant. All
// patient-facing copy is Simplified Chinese.

const (
	replyConfirmNoPending = "未检测到待确认的医生会诊请求。如需医生会诊，请发送“我要找医生”。"

	replyConfirmAlreadyPaid = "您已完成支付，医生会话已建立。如需结束/重新发起，可在会话中继续沟通。"

	// payLinkTemplate takes the payment path.
	payLinkTemplate = "已确认接入医生会诊。请点击链接完成支付：%s（演示版本：点击即视为已支付）"

	replyDoctorAlreadyPaid = "您已完成支付，医生会话已建立。请在本会话中继续描述情况，医生将与您沟通。"

	replyDoctorOffer = "已为您准备医生会诊服务（演示）。\n" +
		"请回复数字 1 确认接入，确认后我将发送支付链接。\n" +
		"（提示：支付后医生端才可见并建立会话）"

	replyAdminOnly = "我只能回答行政类问题，已为您记录，请稍后由人工回复。"

	replyFallback = "抱歉，系统暂时无法处理您的请求，请稍后再试。"

	fallbackQuestions = "您现在最主要的不舒服是什么？\n" +
		"从什么时候开始的？最近有加重吗？\n" +
		"目前有没有在用药或已知过敏？"
)

// introTemplate seeds the first assistant message; takes the doctor's name.
const introTemplate = "您好，我是%s的助理。我会先帮您把情况记录清楚，方便医生更快了解。\n" +
	"您现在最主要哪里不舒服？\n" +
	"从什么时候开始的？\n" +
	"有没有发烧/咳嗽/疼痛等情况？"

const classifyPrompt = `你是一个医疗意图识别助手。
请判断用户的输入是属于“病情/用药相关咨询（包括通用用药问题）”还是“行政类问题（如上班时间、地址、收费、流程、发票、支付等）”。

示例：
- "我头疼" -> medical_consult
- "我有高血压" -> medical_consult
- "几点上班？" -> chitchat_admin
- "挂号费多少？" -> chitchat_admin
- "你好" -> chitchat_admin
- "感冒了吃什么药？" -> medical_consult
修正策略：
- 只要涉及症状、疾病、检查、治疗、用药、剂量、不良反应、孕哺用药等 -> medical_consult
- 仅当问题明显是行政流程/时间/地点/费用/支付/发票/挂号等 -> chitchat_admin

请仅输出类别代码：medical_consult 或 chitchat_admin`

// personaTemplate takes the current persona and the new information.
const personaTemplate = `你是一个医疗画像专家。请根据新的医疗信息，更新患者的“画像（Persona）”。
画像应包含：性格特征、关键健康标签、生活习惯、沟通偏好等。
保持简练、客观。

当前画像：
%s

新导入/分析的信息：
%s

请输出更新后的完整画像文本：`

// intakeSystemTemplate takes the doctor name, persona, and known facts.
const intakeSystemTemplate = `你是%s的助理，负责在线上与患者沟通并收集病情信息。
你要做的是“问诊信息采集”，不是替代医生诊断。

患者画像：%s
已掌握的关键信息（可能来自历史对话或自动抽取）：
%s

要求：
1. 你的回复只能包含“询问句”，用于收集信息；不允许解释病因、不允许给出建议、不允许给出处置方案、不允许提示就医/急诊。
2. 只输出 3 个简短问题，每个问题单独一行，必须以“？”结尾。
3. 不要重复询问患者已经明确回答过的信息；优先问缺失信息。
4. 不要使用编号、列表符号、Markdown，不要出现“建议/可以/应该/需要/先/后/请立刻/急诊”等指导性措辞。
5. 口吻自然、简短，像真人助理在提问。`

// knowledgeAnswerTemplate takes the retrieved reference text and the query.
const knowledgeAnswerTemplate = `你是一个医疗机构的“行政类”助手，只能回答行政/流程问题（如上班时间、地址、收费、挂号、支付、发票、就诊流程）。
你不能回答任何病情、用药、治疗、检查相关的问题。
如果用户的问题不是行政类，或知识库中没有相关信息，请直接回复：我只能回答行政类问题，已为您记录，请稍后由人工回复。

知识库参考：
%s

用户问题：%s`
