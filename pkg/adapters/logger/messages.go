package logger

import "github.com/ideamans/go-l10n"

func init() {
	l10n.Register("ja", l10n.LexiconMap{
		// Orchestration level messages (info)
		"Decoding %d streams":                        "%d 本のストリームをデコード中",
		"Decoding %s to destination %d":              "%s を出力先 %d へデコード中",
		"Stream %s finished: %d frames, %d pictures": "ストリーム %s 完了: %d フレーム, %d ピクチャ",
		"Output saved to %s":                         "出力を %s に保存しました",
		"Summary saved to %s":                        "サマリーを %s に保存しました",
		"Interrupted, shutting down...":              "中断されました。シャットダウン中...",
		"Using %s":                                   "%s を使用します",
		"Discarded %d messages (%d bytes)":           "%d 件のメッセージ (%d バイト) を破棄しました",
		"Picture %dx%d for destination %d":           "出力先 %[3]d へ %[1]dx%[2]d のピクチャ",

		// Decoder component
		"Decode context ready: %dx%d %s (%s)":    "デコードコンテキスト準備完了: %dx%d %s (%s)",
		"Resolution changed from %dx%d to %dx%d": "解像度が %dx%d から %dx%d に変わりました",
		"Packet of %d bytes not accepted: %v":    "%d バイトのパケットは受理されませんでした: %v",

		// Snapshot component
		"Snapshot written: %s":              "スナップショットを保存しました: %s",
		"Snapshot #%d skipped, writer busy": "書き込み中のためスナップショット #%d をスキップしました",

		// Warnings
		"Hardware device %s unavailable, using software decoding: %v": "ハードウェアデバイス %s を利用できません。ソフトウェアデコードを使用します: %v",
		"Failed to configure decoder: %v":                             "デコーダーの構成に失敗しました: %v",
		"Dropped frame: %v":                                           "フレームを破棄しました: %v",
		"Destination %d disconnected: %v":                             "出力先 %d が切断されました: %v",
		"Skipped %d snapshots for destination %d":                     "出力先 %[2]d のスナップショットを %[1]d 件スキップしました",
		"Snapshot failed: %v":                                         "スナップショットに失敗しました: %v",
		"Failed to write summary: %s":                                 "サマリーの書き込みに失敗しました: %s",
		"Display for destination %d dropped %d messages":              "出力先 %d の表示で %d 件のメッセージが破棄されました",
		"Invalid message: %v":                                         "不正なメッセージ: %v",

		// Errors
		"Failed to open input %s: %v": "入力 %s を開けませんでした: %v",
		"Stream %s failed: %v":        "ストリーム %s が失敗しました: %v",
		"Failed to write output: %s":  "出力の書き込みに失敗しました: %s",
	})
}
