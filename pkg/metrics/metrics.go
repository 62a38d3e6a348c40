package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// 全局 Registry，供 API/Worker 注册与暴露
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		SubmitDuration, SubmitTotal,
		AnchorTotal, AnchorTimeoutTotal,
		VerifyTotal,
		EventIngestTotal, EventDuplicateTotal, EventMalformedTotal,
		CheckpointBlock, ListenerState,
	)
}

// SubmitDuration 提交校验全流程耗时（秒）
var SubmitDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "docverify_submit_duration_seconds",
		Help:    "文档提交校验耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"organization"},
)

// SubmitTotal 提交总数（按最终结果）
var SubmitTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "docverify_submit_total",
		Help: "文档提交总数（按结果）",
	},
	[]string{"result"}, // verified | rejected | pending | error
)

// AnchorTotal 公链锚定写入总数
var AnchorTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "docverify_anchor_total",
		Help: "公链锚定写入总数（按类型）",
	},
	[]string{"kind"}, // anchor | reject
)

// AnchorTimeoutTotal 锚定确认超时（结果不明）次数
var AnchorTimeoutTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "docverify_anchor_timeout_total",
		Help: "锚定确认超时次数",
	},
)

// VerifyTotal 公开查验总数（按结果）
var VerifyTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "docverify_verify_total",
		Help: "公开查验总数（按结果）",
	},
	[]string{"result"}, // verified | not_verified | inconsistent
)

// EventIngestTotal 事件摄入总数（按来源 / 事件名）
var EventIngestTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "docverify_event_ingest_total",
		Help: "账本事件摄入总数",
	},
	[]string{"source", "event"},
)

// EventDuplicateTotal 重复投递被幂等跳过的事件数
var EventDuplicateTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "docverify_event_duplicate_total",
		Help: "重复投递被跳过的事件数",
	},
	[]string{"source"},
)

// EventMalformedTotal 负载校验失败被跳过的事件数
var EventMalformedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "docverify_event_malformed_total",
		Help: "负载不合法被跳过的事件数",
	},
	[]string{"source", "event"},
)

// CheckpointBlock 每个来源当前检查点块号
var CheckpointBlock = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "docverify_checkpoint_block",
		Help: "各来源最近同步块号",
	},
	[]string{"source"},
)

// ListenerState 监听器状态（0 disconnected / 1 connecting / 2 listening / 3 stopped）
var ListenerState = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "docverify_listener_state",
		Help: "事件监听器状态",
	},
	[]string{"source"},
)

// WritePrometheus 将 Prometheus 文本格式写入 w（供 Hertz 等复用）
func WritePrometheus(w io.Writer) error {
	metrics, err := DefaultRegistry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range metrics {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
