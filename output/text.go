package output

import (
	"fmt"
	"io"

	"github.com/odflow/odflow/hhh"
	"github.com/odflow/odflow/odflow"
	"github.com/odflow/odflow/query"
)

// WriteText emits the Aguri-format text summary (spec §6, grounded on
// agurim_plot.c:aguri_preamble_print/aguri_odflow_print).
func WriteText(w io.Writer, s *Summary) error {
	if err := writeTextPreamble(w, s); err != nil {
		return err
	}
	return writeTextOdflows(w, s)
}

func writeTextPreamble(w io.Writer, s *Summary) error {
	if _, err := fmt.Fprintf(w, "\n%%!AGURI-2.0\n"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "%%%%StartTime: %s\n", s.StartTime.Format("Mon Jan  2 15:04:05 2006")); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "%%%%EndTime: %s\n", s.EndTime.Format("Mon Jan  2 15:04:05 2006")); err != nil {
		return err
	}

	if rate := formatAvgRate(s); rate != "" {
		if _, err := fmt.Fprintf(w, "%%AvgRate: %s\n", rate); err != nil {
			return err
		}
	}

	if _, err := fmt.Fprintf(w, "%% criteria: %s counter (%.f %% for addresses, %.f %% for protocol data)\n\n",
		criterionLabel(s.Query.Criteria), s.Query.Threshold, s.Query.Threshold); err != nil {
		return err
	}
	return nil
}

func writeTextOdflows(w io.Writer, s *Summary) error {
	i := 1
	var err error
	s.Result.Each(func(o *odflow.Odflow) {
		if err != nil {
			return
		}
		bytePct := 0.0
		if s.TotalByte > 0 {
			bytePct = float64(o.Byte) / float64(s.TotalByte) * 100
		}
		if _, werr := fmt.Fprintf(w, "[%2d] %s: %d (%.2f%%)\t%d (%.2f%%)\n\t",
			i, FormatOdflow(o), o.Byte, bytePct, o.Packet, s.criterionPctByBytePacket(o)); werr != nil {
			err = werr
			return
		}
		i++

		hhh.CountSort(&o.Sub, s.Query.Criteria)
		n := 0
		o.Sub.Each(func(sub *odflow.Odflow) {
			if err != nil || (sub.Spec.Srclen == 0 && sub.Spec.Dstlen == 0) {
				return
			}
			subBytePct := 0.0
			if o.Byte > 0 {
				subBytePct = float64(sub.Byte) / float64(o.Byte) * 100
			}
			if _, werr := fmt.Fprintf(w, "[%s] %.2f%% %.2f%% ", FormatProto(&sub.Spec), subBytePct, s.subPacketPct(o, sub)); werr != nil {
				err = werr
				return
			}
			n++
		})
		if err != nil {
			return
		}
		if n == 0 {
			if _, werr := fmt.Fprintf(w, "[*:*:*] 100.00%% 100.00%%"); werr != nil {
				err = werr
				return
			}
		}
		if _, werr := fmt.Fprintln(w); werr != nil {
			err = werr
		}
	})
	return err
}

// criterionPctByBytePacket and subPacketPct print BOTH byte and packet
// percentages regardless of which one drives thresholding (spec §6's
// text format always shows both columns).
func (s *Summary) criterionPctByBytePacket(o *odflow.Odflow) float64 {
	if s.TotalPacket == 0 {
		return 0
	}
	return float64(o.Packet) / float64(s.TotalPacket) * 100
}

func (s *Summary) subPacketPct(parent, sub *odflow.Odflow) float64 {
	if parent.Packet == 0 {
		return 0
	}
	return float64(sub.Packet) / float64(parent.Packet) * 100
}

func criterionLabel(c query.Criteria) string {
	switch c {
	case query.CriteriaPacket:
		return "pkt"
	case query.CriteriaCombination:
		return "combination"
	default:
		return "byte"
	}
}

// formatAvgRate computes the average bit/packet rate over the summary's
// time span, scaling the byte rate's unit (bps/Kbps/Mbps/Gbps) the way
// aguri_preamble_print does — supplemented from original_source/ since
// spec.md's distillation dropped this line (SPEC_FULL §12).
func formatAvgRate(s *Summary) string {
	sec := s.EndTime.Sub(s.StartTime).Seconds()
	if sec <= 0 {
		return ""
	}
	avgPkt := float64(s.TotalPacket) / sec
	avgByte := float64(s.TotalByte) * 8 / sec

	switch {
	case avgByte > 1e9:
		return fmt.Sprintf("%.2fGbps %.2fpps", avgByte/1e9, avgPkt)
	case avgByte > 1e6:
		return fmt.Sprintf("%.2fMbps %.2fpps", avgByte/1e6, avgPkt)
	case avgByte > 1e3:
		return fmt.Sprintf("%.2fKbps %.2fpps", avgByte/1e3, avgPkt)
	default:
		return fmt.Sprintf("%.2fbps %.2fpps", avgByte, avgPkt)
	}
}
