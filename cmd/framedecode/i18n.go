// Package main provides localization for the framedecode CLI.
package main

import (
	"github.com/ideamans/go-l10n"
)

func init() {
	// Register Japanese translations for CLI messages.
	l10n.Register("ja", l10n.LexiconMap{
		// Flag categories
		"Configuration": "設定",
		"Decoder":       "デコーダー",
		"Output":        "出力先",
		"Logging":       "ログ",

		// Commands
		"Decode compressed video streams into raw picture messages":         "圧縮映像ストリームを生ピクチャメッセージへデコード",
		"Decode video files and emit one picture message per decoded frame": "動画ファイルをデコードし、フレームごとにピクチャメッセージを出力",
		"List the picture messages in a recording":                          "記録ファイル内のピクチャメッセージを一覧表示",
		"Show the decoder library and hardware device types":                "デコーダーライブラリとハードウェアデバイス種別を表示",
		"Show version information":                                          "バージョン情報を表示",
		"framedecode version %s":                                            "framedecode バージョン %s",

		// Decode flags
		"YAML configuration file":                            "YAML設定ファイル",
		"Decoder backend (software, hardware)":               "デコーダーバックエンド（software, hardware）",
		"Compressed codec (h264, hevc)":                      "圧縮コーデック（h264, hevc）",
		"Hardware device type (empty = platform default)":    "ハードウェアデバイス種別（空 = プラットフォーム既定）",
		"Treat every input frame as a complete access unit":  "入力フレームを完全なアクセスユニットとして扱う",
		"Recording file for picture messages":                "ピクチャメッセージの記録ファイル",
		"Output kind (file, null, channel)":                  "出力種別（file, null, channel）",
		"Write PNG snapshots to this directory":              "PNGスナップショットの出力ディレクトリ",
		"Snapshot every Nth picture":                         "N枚ごとにスナップショットを保存",
		"Output execution summary to file (Markdown format)": "実行サマリーをファイルに出力（Markdown形式）",
		"Log level (debug, info, warn, error)":               "ログレベル（debug, info, warn, error）",
		"Suppress all log output":                            "全てのログ出力を抑制",

		// Errors
		"At least one input file is required":   "入力ファイルを1つ以上指定してください",
		"A recording file argument is required": "記録ファイルを指定してください",
		"%d of %d streams failed":               "%d / %d 本のストリームが失敗しました",
		"Record %d: %v":                         "レコード %d: %v",

		// Inspect and probe output
		"%d messages":                              "%d 件のメッセージ",
		"Decoder library: %s":                      "デコーダーライブラリ: %s",
		"Default hardware device: %s":              "既定のハードウェアデバイス: %s",
		"No hardware device types are compiled in": "ハードウェアデバイス種別が組み込まれていません",
		"Hardware device types:":                   "ハードウェアデバイス種別:",
		"available":                                "利用可能",
		"unavailable":                              "利用不可",

		// Summary content
		"Decode Summary":           "デコードサマリー",
		"Generated":                "生成日時",
		"Settings":                 "設定",
		"Item":                     "項目",
		"Value":                    "値",
		"Codec":                    "コーデック",
		"Backend":                  "バックエンド",
		"Hardware Device":          "ハードウェアデバイス",
		"Complete Frames":          "完全フレーム",
		"Yes":                      "はい",
		"No":                       "いいえ",
		"Streams":                  "ストリーム",
		"No streams were decoded.": "デコードされたストリームはありません。",
		"Stream":                   "ストリーム",
		"Destination":              "出力先ID",
		"Frames":                   "フレーム",
		"Pictures":                 "ピクチャ",
		"Data":                     "データ量",
		"Rebuilds":                 "再構築",
		"Errors":                   "エラー",
		"Time":                     "時間",
		"Status":                   "状態",
		"OK":                       "成功",
		"Failed":                   "失敗",
		"Totals":                   "合計",
		"Dropped Frames":           "破棄フレーム",
		"Configuration Failures":   "構成失敗",
	})
}
