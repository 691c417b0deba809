package output

import (
	"io"

	"github.com/odflow/odflow/hhh"
	"github.com/odflow/odflow/odflow"
	"github.com/odflow/odflow/output/ojson"
)

// WriteJSON emits the structured JSON summary (spec §6: criteria,
// duration, start_time, end_time, nflows, interval, labels, data),
// grounded on agurim_plot.c:json_preamble_print/json_odflow_print.
func WriteJSON(w io.Writer, s *Summary) error {
	var buf []byte
	buf = append(buf, '{', '\n')

	buf = ojson.AppendKey(buf, "criteria")
	buf = ojson.AppendString(buf, criterionLabel(s.Query.Criteria))
	buf = append(buf, ",\n"...)

	buf = ojson.AppendKey(buf, "duration")
	buf = ojson.AppendI64(buf, int64(s.EndTime.Sub(s.StartTime).Seconds()))
	buf = append(buf, ",\n"...)

	buf = ojson.AppendKey(buf, "start_time")
	buf = ojson.AppendI64(buf, s.StartTime.Unix())
	buf = append(buf, ",\n"...)

	buf = ojson.AppendKey(buf, "end_time")
	buf = ojson.AppendI64(buf, s.EndTime.Unix())
	buf = append(buf, ",\n"...)

	buf = ojson.AppendKey(buf, "nflows")
	buf = ojson.AppendI64(buf, int64(s.NFlows))
	buf = append(buf, ",\n"...)

	buf = ojson.AppendKey(buf, "interval")
	buf = ojson.AppendI64(buf, int64(s.Interval.Seconds()))
	buf = append(buf, ",\n"...)

	buf = appendJSONLabels(buf, s)
	buf = append(buf, ",\n"...)

	buf = appendJSONData(buf, s)
	buf = append(buf, '\n', '}', '\n')

	_, err := w.Write(buf)
	return err
}

func appendJSONLabels(dst []byte, s *Summary) []byte {
	dst = ojson.AppendKey(dst, "labels")
	dst = append(dst, '[')

	i := 0
	s.Result.Each(func(o *odflow.Odflow) {
		if i > 0 {
			dst = append(dst, ", "...)
		}
		i++

		var label []byte
		label = append(label, '[')
		label = ojson.AppendI64(label, int64(i))
		label = append(label, "] "...)
		label = append(label, FormatOdflow(o)...)
		label = append(label, ' ')
		label = ojson.AppendFloat(label, s.criterionPct(o), 2)
		label = append(label, "%  "...)

		hhh.CountSort(&o.Sub, s.Query.Criteria)
		n := 0
		o.Sub.Each(func(sub *odflow.Odflow) {
			if sub.Spec.Srclen == 0 && sub.Spec.Dstlen == 0 {
				return
			}
			label = append(label, '[')
			label = append(label, FormatProto(&sub.Spec)...)
			label = append(label, "] "...)
			label = ojson.AppendFloat(label, s.subPct(o, sub), 2)
			label = append(label, "% "...)
			n++
		})
		if n == 0 {
			label = append(label, "[*:*:*] 100.00% "...)
		}

		dst = ojson.AppendString(dst, string(label))
	})

	dst = append(dst, `, "TOTAL"]`...)
	return dst
}

// appendJSONData emits the optional plot time series (spec §4.9): one
// row per timestamp, each odflow's counter for that slot, plus the row
// total. Omitted (empty array) when the summary wasn't built from a
// plot.Plot.
func appendJSONData(dst []byte, s *Summary) []byte {
	dst = ojson.AppendKey(dst, "data")
	dst = append(dst, '[')

	for i := 0; i < len(s.Timestamps)-1; i++ {
		if i > 0 {
			dst = append(dst, ", "...)
		}
		dst = append(dst, '[')
		dst = ojson.AppendI64(dst, s.Timestamps[i].Unix())
		dst = append(dst, ", "...)

		var total uint64
		s.Result.Each(func(o *odflow.Odflow) {
			cnt := o.IdxCache.Get(i)
			total += cnt
			dst = ojson.AppendU64(dst, cnt)
			dst = append(dst, ", "...)
		})
		dst = ojson.AppendU64(dst, total)
		dst = append(dst, ']')
	}

	dst = append(dst, ']')
	return dst
}
